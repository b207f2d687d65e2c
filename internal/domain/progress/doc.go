// Package progress содержит движок прогресса и геймификации Mentor Hub.
//
// Пакет превращает поток учебных активностей пользователя в очки опыта,
// уровни, серии активных дней, достижения и завершённые вехи. Он определяет:
//
//   - Value Objects: XP, LevelInfo, StreakRecord, Requirement
//   - Сущности: ProfileSnapshot, AchievementDefinition, Milestone
//   - Движки: AchievementEngine, MilestoneEngine, Orchestrator
//   - Интерфейсы хранилищ: ProfileStore, ProfileCache
//
// # Архитектурные принципы
//
//  1. Минимум зависимостей - стандартная библиотека и validator для входных структур
//  2. Детерминизм - все вычисления чистые, время передаётся через Clock
//  3. Снимки неизменяемы - каждый шаг работает с копией (Clone)
//
// # Поток данных
//
// Данные идут в одну сторону:
//
//	ActivityEvent -> Orchestrator -> (Level, Ledger, Streak, Achievements, Milestones)
//	              -> новый ProfileSnapshot + уведомления
//
// Пример:
//
//	registry := progress.DefaultRegistry()
//	orch := progress.NewOrchestrator(registry, timeutil.SystemClock)
//	snap := progress.NewProfileSnapshot("user-1", now)
//	outcome, err := orch.ProcessActivity(snap, activity)
//
// Движок не обращается к хранилищу. Сохранение снимка с проверкой версии
// выполняет прикладной слой (internal/application/command).
package progress
