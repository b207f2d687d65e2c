package progress

// ══════════════════════════════════════════════════════════════════════════════
// XP & LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта пользователя.
type XP int64

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// MaxLevel - максимальный уровень.
const MaxLevel = 10

// levelThresholds - порог XP для каждого уровня (индекс 0 = уровень 1).
var levelThresholds = [MaxLevel]XP{0, 100, 250, 500, 1000, 1750, 2750, 4000, 5500, 7500}

// LevelInfo - производная информация об уровне. Никогда не хранится как источник истины.
type LevelInfo struct {
	// CurrentLevel - текущий уровень (1..MaxLevel).
	CurrentLevel int `json:"current_level"`

	// CurrentXP - текущий XP.
	CurrentXP XP `json:"current_xp"`

	// XPToNextLevel - сколько XP осталось до следующего уровня (0 на максимальном).
	XPToNextLevel XP `json:"xp_to_next_level"`

	// TotalXPRequired - порог следующего уровня (на максимальном - последний порог).
	TotalXPRequired XP `json:"total_xp_required"`

	// LevelTitle - название уровня.
	LevelTitle string `json:"level_title"`

	// ProgressPercent - пройденная доля текущего уровня (0..100).
	ProgressPercent int `json:"progress_percent"`
}

// IsMax возвращает true на максимальном уровне.
func (li LevelInfo) IsMax() bool {
	return li.CurrentLevel == MaxLevel
}

// LevelOf вычисляет уровень по XP. Отрицательный XP считается нулём.
func LevelOf(xp XP) LevelInfo {
	if xp < 0 {
		xp = 0
	}

	level := 1
	for i := MaxLevel - 1; i >= 0; i-- {
		if xp >= levelThresholds[i] {
			level = i + 1
			break
		}
	}

	info := LevelInfo{
		CurrentLevel: level,
		CurrentXP:    xp,
		LevelTitle:   LevelTitle(level),
	}

	if level == MaxLevel {
		info.TotalXPRequired = levelThresholds[MaxLevel-1]
		info.ProgressPercent = 100
		return info
	}

	floor := levelThresholds[level-1]
	next := levelThresholds[level]
	info.TotalXPRequired = next
	info.XPToNextLevel = next - xp
	info.ProgressPercent = int((xp - floor) * 100 / (next - floor))
	return info
}

// LevelThreshold возвращает минимальный XP для уровня.
// Уровни вне диапазона приводятся к 1..MaxLevel.
func LevelThreshold(level int) XP {
	switch {
	case level < 1:
		level = 1
	case level > MaxLevel:
		level = MaxLevel
	}
	return levelThresholds[level-1]
}

// levelTitles - названия уровней, по одному на пару уровней.
var levelTitles = [...]string{
	"Career Novice",
	"Career Explorer",
	"Career Builder",
	"Career Strategist",
	"Career Master",
}

// LevelTitle возвращает название уровня.
func LevelTitle(level int) string {
	switch {
	case level < 1:
		level = 1
	case level > MaxLevel:
		level = MaxLevel
	}
	return levelTitles[(level-1)/2]
}
