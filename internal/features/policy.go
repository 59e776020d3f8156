package features

import (
	"time"

	"github.com/spf13/viper"

	sv "quinn/internal/service"
)

// Policy is the business configuration of an interview session: how many
// questions to ask, how many to seed up front, how long the session may run
// and what each question slot looks like.
type Policy struct {
	TotalQuestionsToAsk int32
	InitialBatchSize    int
	MaxDuration         time.Duration
	QuestionConfigs     []sv.QuestionConfig
}

// PolicyFromConfig reads the interview.* keys. Seeding more questions than
// the quota allows makes the first submission complete the session
// immediately, so the batch is clamped below the quota.
func PolicyFromConfig() Policy {
	policy := Policy{
		TotalQuestionsToAsk: viper.GetInt32("interview.total_questions"),
		InitialBatchSize:    viper.GetInt("interview.initial_batch"),
		MaxDuration:         time.Duration(viper.GetInt("interview.max_duration_minutes")) * time.Minute,
	}
	if policy.TotalQuestionsToAsk <= 0 {
		policy.TotalQuestionsToAsk = 5
	}
	if policy.InitialBatchSize <= 0 {
		policy.InitialBatchSize = 3
	}
	if policy.InitialBatchSize > int(policy.TotalQuestionsToAsk) {
		policy.InitialBatchSize = int(policy.TotalQuestionsToAsk)
	}
	if policy.MaxDuration <= 0 {
		policy.MaxDuration = 60 * time.Minute
	}

	var raw []struct {
		Category             string  `mapstructure:"category"`
		ExpectedTimeMinutes  int32   `mapstructure:"expected_time_minutes"`
		TotalMarks           float64 `mapstructure:"total_marks"`
	}
	if err := viper.UnmarshalKey("interview.question_configs", &raw); err == nil {
		for _, c := range raw {
			policy.QuestionConfigs = append(policy.QuestionConfigs, sv.QuestionConfig{
				Category:             c.Category,
				ExpectedTimeToAnswer: c.ExpectedTimeMinutes,
				TotalMarks:           c.TotalMarks,
			})
		}
	}
	if len(policy.QuestionConfigs) == 0 {
		policy.QuestionConfigs = []sv.QuestionConfig{
			{Category: "background", ExpectedTimeToAnswer: 4, TotalMarks: 5},
		}
	}
	return policy
}

// initialConfigs returns the configs for the seeded batch.
func (p Policy) initialConfigs() []sv.QuestionConfig {
	n := p.InitialBatchSize
	configs := make([]sv.QuestionConfig, n)
	for i := 0; i < n; i++ {
		configs[i] = p.configFor(i)
	}
	return configs
}

// configFor returns the config for the zero-based slot index; past the end
// of the list the last config repeats.
func (p Policy) configFor(index int) sv.QuestionConfig {
	if index < len(p.QuestionConfigs) {
		return p.QuestionConfigs[index]
	}
	return p.QuestionConfigs[len(p.QuestionConfigs)-1]
}
