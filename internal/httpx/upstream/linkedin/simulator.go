package linkedin

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	postentity "github.com/vadim/linkpilot/internal/domain/post/entity"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
)

var (
	firstNames = []string{"Alex", "Maria", "David", "Priya", "James", "Sofia", "Daniel", "Chen", "Laura", "Omar"}
	lastNames  = []string{"Johnson", "Garcia", "Kim", "Patel", "Müller", "Rossi", "Nguyen", "Smith", "Okafor", "Silva"}
	titles     = []string{"CEO", "Marketing Manager", "Founder", "Software Engineer", "VP of Sales", "Product Designer", "CTO", "Data Analyst", "Director of Operations", "Account Executive"}
	companies  = []string{"Northwind", "Globex", "Initech", "Umbrella Labs", "Hooli", "Stark Digital", "Acme Cloud", "Wayne Analytics"}
	industries = []string{"Technology", "Software", "Marketing", "Finance", "Healthcare", "Consulting"}
	locations  = []string{"San Francisco", "New York", "London", "Berlin", "Toronto", "Singapore"}
)

// Simulator is an in-process LinkedIn account used when no API access is configured.
// Searches return generated profiles shaped by the criteria and every action succeeds.
type Simulator struct {
	mu      sync.Mutex
	seq     int
	actions map[string]int
	logger  *slog.Logger
}

// NewSimulator creates a simulated account
func NewSimulator(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{actions: make(map[string]int), logger: logger}
}

// FindTargets returns in.Limit generated candidates matching the criteria
func (s *Simulator) FindTargets(ctx context.Context, in engine.SearchInput) ([]entity.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	start := s.seq
	s.seq += in.Limit
	s.mu.Unlock()

	urnKind := "person"
	if in.RuleType.IsEngagement() {
		urnKind = "activity"
	}

	c := in.Criteria
	targets := make([]entity.Target, 0, in.Limit)
	for i := start; i < start+in.Limit; i++ {
		company := companies[i%len(companies)]
		targets = append(targets, entity.Target{
			ID:         fmt.Sprintf("urn:li:%s:%s", urnKind, uuid.New().String()),
			FirstName:  firstNames[i%len(firstNames)],
			LastName:   lastNames[(i/len(firstNames)+i)%len(lastNames)],
			Headline:   pick(c.JobTitles, titles, i) + " at " + company,
			Company:    company,
			Industry:   pick(c.Industries, industries, i),
			Location:   pick(c.Locations, locations, i),
			ProfileURL: fmt.Sprintf("https://www.linkedin.com/in/sim-%d", i),
		})
	}
	return targets, nil
}

// Execute records the action and succeeds
func (s *Simulator) Execute(ctx context.Context, in engine.ActionInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.actions[string(in.ActionType)]++
	s.mu.Unlock()

	s.logger.Debug("simulated action", "user_id", in.UserID, "action_type", in.ActionType, "target", in.Target.ID)
	return nil
}

// Actions returns how many actions of a type were executed
func (s *Simulator) Actions(actionType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions[actionType]
}

// CreatePost returns a generated share URN
func (s *Simulator) CreatePost(ctx context.Context, in postpolicy.PublishInput) (*postpolicy.PublishOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := "urn:li:share:" + uuid.New().String()
	s.logger.Info("simulated post published", "user_id", in.UserID, "external_id", id, "chars", len(in.Text))
	return &postpolicy.PublishOutput{ExternalID: id, URL: PostURL(id)}, nil
}

// GetPostMetrics derives stable engagement numbers from the post id
func (s *Simulator) GetPostMetrics(ctx context.Context, externalID string) (postentity.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return postentity.Metrics{}, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(externalID))
	v := int(h.Sum32())

	return postentity.Metrics{
		Likes:       v % 120,
		Comments:    (v / 7) % 25,
		Shares:      (v / 13) % 10,
		Impressions: 500 + (v/17)%4500,
	}, nil
}

func pick(preferred, fallback []string, i int) string {
	if len(preferred) > 0 {
		return preferred[i%len(preferred)]
	}
	return fallback[i%len(fallback)]
}
