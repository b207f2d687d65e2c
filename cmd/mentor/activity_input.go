package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// activityFlags collects an activity from flags or from a YAML/JSON file.
type activityFlags struct {
	file     string
	id       string
	kind     string
	title    string
	resource string
	at       string
	minutes  int
	skills   []string
	rating   int
}

func (f *activityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "activity", "", "Activity file (YAML or JSON); flags below override its fields")
	cmd.Flags().StringVar(&f.id, "id", "", "Activity ID, the idempotency key (generated when empty)")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Activity kind: course, project, practice, reading, video, assessment")
	cmd.Flags().StringVar(&f.title, "title", "", "Activity title")
	cmd.Flags().StringVar(&f.resource, "resource", "", "Roadmap resource ID")
	cmd.Flags().StringVar(&f.at, "at", "", "Completion time, YYYY-MM-DD or RFC 3339 (defaults to now)")
	cmd.Flags().IntVar(&f.minutes, "minutes", 0, "Time spent in minutes")
	cmd.Flags().StringSliceVar(&f.skills, "skills", nil, "Skills gained (comma-separated)")
	cmd.Flags().IntVar(&f.rating, "rating", 0, "Rating 1-5 (0 leaves it unset)")
}

// build resolves the activity. now fills in a missing completion time.
func (f *activityFlags) build(now time.Time) (progress.ActivityEvent, error) {
	var a progress.ActivityEvent
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return a, fmt.Errorf("read activity: %w", err)
		}
		if err := yaml.Unmarshal(data, &a); err != nil {
			return a, fmt.Errorf("parse activity %s: %w", f.file, err)
		}
	}

	if f.id != "" {
		a.ID = f.id
	}
	if f.kind != "" {
		a.Kind = progress.ActivityKind(strings.ToLower(f.kind))
	}
	if f.title != "" {
		a.Title = f.title
	}
	if f.resource != "" {
		a.ResourceID = f.resource
	}
	if f.at != "" {
		t, err := timeutil.ParseDateOrTimestamp(f.at)
		if err != nil {
			return a, err
		}
		a.CompletedAt = t
	}
	if f.minutes > 0 {
		a.TimeSpentMinutes = f.minutes
	}
	if len(f.skills) > 0 {
		a.SkillsGained = f.skills
	}
	if f.rating != 0 {
		r := f.rating
		a.Rating = &r
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CompletedAt.IsZero() {
		a.CompletedAt = now
	}
	return a, nil
}
