package scoring

import (
	"math/rand"
	"time"

	"github.com/mroth/weightedrand/v2"

	"haxquest/internal/models"
	"haxquest/internal/pkg"
)

var questScoreTiers = []weightedrand.Choice[int, int]{
	weightedrand.NewChoice(70, 3),
	weightedrand.NewChoice(80, 2),
	weightedrand.NewChoice(90, 1),
}

// QuestRotation picks the daily quest as a pure function of the UTC date, so
// every user without a personal quest sees the same one on the same day.
type QuestRotation struct {
	tasks *weightedrand.Chooser[string, int]
	tiers *weightedrand.Chooser[int, int]
}

func NewQuestRotation(catalog *Catalog) (*QuestRotation, error) {
	choices := make([]weightedrand.Choice[string, int], 0, catalog.Len())
	for _, t := range catalog.Tasks() {
		if t.QuestWeight > 0 {
			choices = append(choices, weightedrand.NewChoice(t.ID, t.QuestWeight))
		}
	}
	tasks, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, err
	}
	tiers, err := weightedrand.NewChooser(questScoreTiers...)
	if err != nil {
		return nil, err
	}
	return &QuestRotation{tasks, tiers}, nil
}

func (q *QuestRotation) For(day time.Time) models.DailyQuest {
	start := pkg.StartOfDay(day)
	src := rand.New(rand.NewSource(start.Unix() / 86400))
	return models.DailyQuest{
		TaskID:        q.tasks.PickSource(src),
		RequiredScore: q.tiers.PickSource(src),
		AssignedDate:  pkg.FormatDate(start),
	}
}
