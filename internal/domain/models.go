package domain

import (
	"strconv"
	"time"
)

// Operator is an arithmetic operator used by generated problems.
type Operator string

const (
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "*"
	OpDivide   Operator = "/"
)

// Operators lists every supported operator in a stable order.
var Operators = []Operator{OpAdd, OpSubtract, OpMultiply, OpDivide}

// Problem is one arithmetic round: the operands, the answer and the decoys shown next to it.
type Problem struct {
	Operand1      int      `json:"operand1" msgpack:"a"`
	Operand2      int      `json:"operand2" msgpack:"b"`
	Operator      Operator `json:"operator" msgpack:"op"`
	CorrectAnswer int      `json:"correctAnswer" msgpack:"ans"`
	DecoyAnswers  []int    `json:"decoyAnswers" msgpack:"decoys"`
}

// Text renders the problem the way clients display it, e.g. "5 + 3".
func (p Problem) Text() string {
	return strconv.Itoa(p.Operand1) + " " + string(p.Operator) + " " + strconv.Itoa(p.Operand2)
}

// Choices returns the correct answer followed by the decoys.
func (p Problem) Choices() []int {
	out := make([]int, 0, len(p.DecoyAnswers)+1)
	out = append(out, p.CorrectAnswer)
	return append(out, p.DecoyAnswers...)
}

// QuestionSet is curated content used by team challenges instead of generated problems.
type QuestionSet struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Questions []Problem `json:"questions" msgpack:"questions"`
}

// Target is one physical answer target the renderer spawns.
type Target struct {
	Value int `json:"value"`
	Lane  int `json:"lane"`
}

// SpawnRequest asks the rendering collaborator to spawn answer targets for an owner.
type SpawnRequest struct {
	Round   int      `json:"round"`
	Targets []Target `json:"targets"`
}

// ProblemView is the UI payload for a freshly started round.
type ProblemView struct {
	Round    int    `json:"round"`
	Text     string `json:"text"`
	Question int    `json:"question"`
	Total    int    `json:"total"`
}

// Outcome is how a round was resolved.
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeTimeout Outcome = "timeout"
)

// RoundResult is sent after every resolved solo round.
type RoundResult struct {
	Round             int     `json:"round"`
	Outcome           Outcome `json:"outcome"`
	CorrectAnswer     int     `json:"correctAnswer"`
	Selected          *int    `json:"selected,omitempty"`
	Awarded           int     `json:"awarded"`
	Score             int     `json:"score"`
	QuestionsAnswered int     `json:"questionsAnswered"`
	Combo             int     `json:"combo"`
	Shielded          bool    `json:"shielded,omitempty"`
}

// SessionState is the state of a solo session.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionActive    SessionState = "active"
	SessionResolving SessionState = "resolving"
	SessionEnded     SessionState = "ended"
)

// PlayerSession is a snapshot of one player's running record.
type PlayerSession struct {
	PlayerID             string       `json:"playerId" msgpack:"player_id"`
	State                SessionState `json:"state" msgpack:"state"`
	Score                int          `json:"score" msgpack:"score"`
	QuestionsAnswered    int          `json:"questionsAnswered" msgpack:"answered"`
	CorrectAnswers       int          `json:"correctAnswers" msgpack:"correct"`
	CurrentCorrectAnswer int          `json:"-" msgpack:"current_answer"`
	Round                int          `json:"round" msgpack:"round"`
	ComboCount           int          `json:"comboCount" msgpack:"combo"`
	IsActive             bool         `json:"isActive" msgpack:"active"`
	UpdatedAt            time.Time    `json:"updatedAt" msgpack:"updated_at"`
}

// SessionSummary is reported when a solo round sequence ends.
type SessionSummary struct {
	PlayerID          string    `json:"playerId"`
	Score             int       `json:"score"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CorrectAnswers    int       `json:"correctAnswers"`
	Accuracy          float64   `json:"accuracy"`
	BestCombo         int       `json:"bestCombo"`
	StartedAt         time.Time `json:"startedAt"`
	EndedAt           time.Time `json:"endedAt"`
}

// ChallengeMode selects the victory rule of a team challenge.
type ChallengeMode string

const (
	ModeSurvival    ChallengeMode = "survival"
	ModeTimed       ChallengeMode = "timed"
	ModeScoreAttack ChallengeMode = "score-attack"
)

// Valid reports whether m is a known mode.
func (m ChallengeMode) Valid() bool {
	switch m {
	case ModeSurvival, ModeTimed, ModeScoreAttack:
		return true
	}
	return false
}

// Difficulty keys the shared-lives table.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// ChallengeState is the lifecycle state of a team challenge.
type ChallengeState string

const (
	ChallengeForming ChallengeState = "forming"
	ChallengeActive  ChallengeState = "active"
	ChallengeEnded   ChallengeState = "ended"
)

// Membership locates a player inside a challenge.
type Membership struct {
	ChallengeID string `json:"challengeId"`
	TeamID      string `json:"teamId"`
}

// MemberStats is the per-member view included in team snapshots and summaries.
type MemberStats struct {
	PlayerID     string  `json:"playerId"`
	Active       bool    `json:"active"`
	Correct      int     `json:"correct"`
	Wrong        int     `json:"wrong"`
	Contribution int     `json:"contribution"`
	Accuracy     float64 `json:"accuracy"`
}

// TeamSnapshot is the per-team view of a challenge.
type TeamSnapshot struct {
	TeamID            string        `json:"teamId"`
	Members           []MemberStats `json:"members"`
	SharedLives       int           `json:"sharedLives"`
	TotalScore        int           `json:"totalScore"`
	CurrentRoundIndex int           `json:"currentRoundIndex"`
	ComboCount        int           `json:"comboCount"`
	IsEliminated      bool          `json:"isEliminated"`
	Accuracy          float64       `json:"accuracy"`
}

// ChallengeSnapshot is the lobby/scoreboard view of a challenge.
type ChallengeSnapshot struct {
	ChallengeID   string         `json:"challengeId"`
	HostID        string         `json:"hostId"`
	Mode          ChallengeMode  `json:"mode"`
	State         ChallengeState `json:"state"`
	Difficulty    Difficulty     `json:"difficulty,omitempty"`
	TotalRounds   int            `json:"totalRounds"`
	Teams         []TeamSnapshot `json:"teams"`
	StartTime     time.Time      `json:"startTime,omitempty"`
	EndTime       time.Time      `json:"endTime,omitempty"`
	WinningTeamID string         `json:"winningTeamId,omitempty"`
}

// TeamRoundResult is broadcast to a team's members after a resolved team round.
type TeamRoundResult struct {
	ChallengeID   string  `json:"challengeId"`
	TeamID        string  `json:"teamId"`
	PlayerID      string  `json:"playerId"`
	Outcome       Outcome `json:"outcome"`
	CorrectAnswer int     `json:"correctAnswer"`
	Awarded       int     `json:"awarded"`
	TotalScore    int     `json:"totalScore"`
	SharedLives   int     `json:"sharedLives"`
	ComboCount    int     `json:"comboCount"`
	RoundIndex    int     `json:"roundIndex"`
	Shielded      bool    `json:"shielded,omitempty"`
	Eliminated    bool    `json:"eliminated,omitempty"`
}

// ChallengeSummary is broadcast when a challenge ends.
type ChallengeSummary struct {
	ChallengeSnapshot
	MVP      *MemberStats `json:"mvp,omitempty"`
	MVPTeam  string       `json:"mvpTeam,omitempty"`
	Duration float64      `json:"durationSeconds"`
}
