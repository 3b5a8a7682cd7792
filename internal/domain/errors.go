package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a player has no session record.
	ErrSessionNotFound = errors.New("player session not found")
	// ErrChallengeNotFound is returned for unknown challenge IDs.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrTeamNotFound indicates the team does not exist in the challenge.
	ErrTeamNotFound = errors.New("team not found")
	// ErrChallengeNotForming is returned for membership changes after a challenge started.
	ErrChallengeNotForming = errors.New("challenge is not accepting membership changes")
	// ErrChallengeNotActive is returned when a running challenge was expected.
	ErrChallengeNotActive = errors.New("challenge is not active")
	// ErrNotEnoughTeams is returned when fewer than two teams have members at start.
	ErrNotEnoughTeams = errors.New("at least two populated teams are required")
	// ErrAlreadyInChallenge is returned when a player joins a second challenge.
	ErrAlreadyInChallenge = errors.New("player already belongs to another challenge")
	// ErrNotMember indicates the player is not part of the challenge.
	ErrNotMember = errors.New("player is not a member of the challenge")
	// ErrInvalidMode indicates an unknown challenge mode.
	ErrInvalidMode = errors.New("invalid challenge mode")
	// ErrInvalidDifficulty indicates a difficulty missing from the lives table.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrQuestionSetNotFound indicates question content could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrInvalidQuestionSet indicates curated content the display range cannot show.
	ErrInvalidQuestionSet = errors.New("invalid question set")
	// ErrUnknownPowerUp indicates a power-up name outside the catalog.
	ErrUnknownPowerUp = errors.New("unknown power-up")
	// ErrGenerationFailed is returned when a problem cannot be built within its bounds.
	ErrGenerationFailed = errors.New("problem generation failed")
)
