package progress

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILLS
// ══════════════════════════════════════════════════════════════════════════════

// SkillLevel - уровень владения навыком.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// rank возвращает порядковый номер уровня (0 для неизвестного).
func (l SkillLevel) rank() int {
	switch l {
	case SkillBeginner:
		return 1
	case SkillIntermediate:
		return 2
	case SkillAdvanced:
		return 3
	case SkillExpert:
		return 4
	}
	return 0
}

// IsValid проверяет, что уровень известен.
func (l SkillLevel) IsValid() bool {
	return l.rank() > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// ProfileSnapshot - снимок прогресса одного пользователя.
// Снимки не изменяются на месте: оркестратор работает с копией (Clone)
// и возвращает новый снимок. Version увеличивает только хранилище при сохранении.
type ProfileSnapshot struct {
	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// Version - версия для оптимистичной блокировки.
	Version int64 `json:"version"`

	// ExperiencePoints - накопленный XP. Не убывает.
	ExperiencePoints XP `json:"experience_points"`

	// Level - кэш уровня, всегда равен LevelOf(ExperiencePoints).CurrentLevel.
	Level int `json:"level"`

	// EarnedAchievements - полученные достижения (множество по ID).
	EarnedAchievements []EarnedAchievement `json:"earned_achievements"`

	// Milestones - вехи пользователя.
	Milestones []Milestone `json:"milestones"`

	// Streak - серия активности.
	Streak StreakRecord `json:"streak"`

	// SkillProgress - навыки и уровни владения.
	SkillProgress map[string]SkillLevel `json:"skill_progress"`

	// CareerRecommendations - изученные рекомендации карьерных путей.
	CareerRecommendations []string `json:"career_recommendations"`

	// SelectedCareerPath - выбранный карьерный путь (пусто, если не выбран).
	SelectedCareerPath string `json:"selected_career_path,omitempty"`

	// ResumeAttached - резюме загружено.
	ResumeAttached bool `json:"resume_attached"`

	// RoadmapGenerated - дорожная карта построена.
	RoadmapGenerated bool `json:"roadmap_generated"`

	// RoadmapProgress - прогресс дорожной карты (0..100).
	RoadmapProgress int `json:"roadmap_progress"`

	// SkillGapAnalysisDone - анализ пробелов в навыках выполнен.
	SkillGapAnalysisDone bool `json:"skill_gap_analysis_done"`

	// ChatMessageCount - сообщений в чате с ментором.
	ChatMessageCount int `json:"chat_message_count"`

	// BestAtsImprovement - лучшее улучшение ATS-оценки резюме.
	BestAtsImprovement int `json:"best_ats_improvement"`

	// ProfileCompleteness - заполненность профиля (0..100).
	ProfileCompleteness int `json:"profile_completeness"`

	// LearningActivitiesCount - завершённых учебных активностей.
	LearningActivitiesCount int `json:"learning_activities_count"`

	// ActivityLog - журнал обработанных активностей (для идемпотентности).
	ActivityLog []ActivityLogEntry `json:"activity_log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfileSnapshot создаёт новый профиль с набором вех по умолчанию.
func NewProfileSnapshot(userID string, now time.Time) *ProfileSnapshot {
	return NewProfileSnapshotWithMilestones(userID, now, DefaultMilestones())
}

// NewProfileSnapshotWithMilestones создаёт новый профиль с заданными вехами.
func NewProfileSnapshotWithMilestones(userID string, now time.Time, milestones []Milestone) *ProfileSnapshot {
	now = now.UTC()

	ms := make([]Milestone, len(milestones))
	for i, m := range milestones {
		m.IsCompleted = false
		m.CompletedAt = nil
		ms[i] = m
	}

	return &ProfileSnapshot{
		UserID:                userID,
		Version:               0,
		ExperiencePoints:      0,
		Level:                 1,
		EarnedAchievements:    []EarnedAchievement{},
		Milestones:            ms,
		Streak:                NewStreakRecord(),
		SkillProgress:         map[string]SkillLevel{},
		CareerRecommendations: []string{},
		ActivityLog:           []ActivityLogEntry{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Clone возвращает глубокую копию снимка.
func (s *ProfileSnapshot) Clone() *ProfileSnapshot {
	if s == nil {
		return nil
	}

	c := *s

	c.EarnedAchievements = append([]EarnedAchievement{}, s.EarnedAchievements...)
	c.CareerRecommendations = append([]string{}, s.CareerRecommendations...)
	c.ActivityLog = append([]ActivityLogEntry{}, s.ActivityLog...)

	c.Milestones = make([]Milestone, len(s.Milestones))
	for i, m := range s.Milestones {
		if m.CompletedAt != nil {
			at := *m.CompletedAt
			m.CompletedAt = &at
		}
		c.Milestones[i] = m
	}

	c.SkillProgress = make(map[string]SkillLevel, len(s.SkillProgress))
	for k, v := range s.SkillProgress {
		c.SkillProgress[k] = v
	}

	return &c
}

// LevelInfo возвращает информацию об уровне.
func (s *ProfileSnapshot) LevelInfo() LevelInfo {
	return LevelOf(s.ExperiencePoints)
}

// HasAchievement проверяет, получено ли достижение.
func (s *ProfileSnapshot) HasAchievement(id AchievementID) bool {
	for _, ea := range s.EarnedAchievements {
		if ea.ID == id {
			return true
		}
	}
	return false
}

// HasProcessedActivity проверяет, была ли активность уже учтена.
func (s *ProfileSnapshot) HasProcessedActivity(activityID string) bool {
	for _, e := range s.ActivityLog {
		if e.ID == activityID {
			return true
		}
	}
	return false
}

// HasExpertSkill возвращает true, если хотя бы один навык на уровне expert.
func (s *ProfileSnapshot) HasExpertSkill() bool {
	for _, lvl := range s.SkillProgress {
		if lvl == SkillExpert {
			return true
		}
	}
	return false
}

// Skills возвращает отсортированный список навыков.
func (s *ProfileSnapshot) Skills() []string {
	skills := make([]string, 0, len(s.SkillProgress))
	for k := range s.SkillProgress {
		skills = append(skills, k)
	}
	sort.Strings(skills)
	return skills
}

// MilestoneByID возвращает веху по ID.
func (s *ProfileSnapshot) MilestoneByID(id string) (Milestone, bool) {
	for _, m := range s.Milestones {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}

// CompletedMilestoneCount возвращает число завершённых вех.
func (s *ProfileSnapshot) CompletedMilestoneCount() int {
	n := 0
	for _, m := range s.Milestones {
		if m.IsCompleted {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATIONS (только на копии внутри оркестратора)
// ══════════════════════════════════════════════════════════════════════════════

// mergeSkill повышает навык до level, но никогда не понижает.
func (s *ProfileSnapshot) mergeSkill(skill string, level SkillLevel) {
	if skill == "" {
		return
	}
	if s.SkillProgress == nil {
		s.SkillProgress = map[string]SkillLevel{}
	}
	if cur, ok := s.SkillProgress[skill]; ok && cur.rank() >= level.rank() {
		return
	}
	s.SkillProgress[skill] = level
}

// addCareer добавляет изученный карьерный путь без дублей.
func (s *ProfileSnapshot) addCareer(id string) {
	if id == "" {
		return
	}
	for _, c := range s.CareerRecommendations {
		if c == id {
			return
		}
	}
	s.CareerRecommendations = append(s.CareerRecommendations, id)
}
