package progress

import (
	"math"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// AwardResult - результат начисления опыта.
type AwardResult struct {
	// PreviousXP - XP до начисления.
	PreviousXP XP `json:"previous_xp"`

	// NewXP - XP после начисления.
	NewXP XP `json:"new_xp"`

	// LeveledUp - уровень вырос.
	LeveledUp bool `json:"leveled_up"`

	// NewLevel - новый уровень. Заполняется только при LeveledUp, иначе 0.
	NewLevel int `json:"new_level,omitempty"`
}

// Award начисляет amount очков к текущему XP.
// Отрицательное начисление, повреждённый отрицательный XP или переполнение
// int64 - ErrInvalidAward: XP никогда не убывает.
func Award(current, amount XP) (AwardResult, error) {
	if amount < 0 || current < 0 {
		return AwardResult{}, shared.ErrInvalidAward
	}
	if amount > XP(math.MaxInt64)-current {
		return AwardResult{}, shared.WrapError("progress", "Award", shared.ErrValueOutOfRange,
			"experience total would overflow", shared.ErrInvalidAward)
	}

	newXP := current + amount
	result := AwardResult{
		PreviousXP: current,
		NewXP:      newXP,
	}

	before := LevelOf(current).CurrentLevel
	after := LevelOf(newXP).CurrentLevel
	if after > before {
		result.LeveledUp = true
		result.NewLevel = after
	}

	return result, nil
}
