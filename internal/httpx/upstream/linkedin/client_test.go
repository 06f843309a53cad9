package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
	"github.com/vadim/linkpilot/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]ClientOption{
		WithBaseURL(srv.URL),
		WithAccessToken("token-123"),
		WithAuthorURN("urn:li:person:me"),
	}, opts...)
	return New(opts...)
}

func TestCreatePost(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/ugcPosts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Restli-Protocol-Version"); got != "2.0.0" {
			t.Errorf("protocol version = %q", got)
		}

		var body ugcPost
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		share := body.SpecificContent["com.linkedin.ugc.ShareContent"]
		if body.Author != "urn:li:person:me" || share.ShareCommentary.Text != "Hello LinkedIn" {
			t.Errorf("unexpected body %+v", body)
		}
		if share.ShareMediaCategory != "ARTICLE" || len(share.Media) != 1 {
			t.Errorf("media not attached: %+v", share)
		}

		w.Header().Set("X-RestLi-Id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	})

	out, err := client.CreatePost(context.Background(), CreatePostInput{
		Text:      "Hello LinkedIn",
		MediaURLs: []string{"https://cdn.example.com/a.png"},
	})
	if err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}
	if out.ID != "urn:li:share:42" {
		t.Errorf("ID = %q", out.ID)
	}
	if out.URL != "https://www.linkedin.com/feed/update/urn:li:share:42/" {
		t.Errorf("URL = %q", out.URL)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status   int
		terminal bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusUnprocessableEntity, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"serviceErrorCode":65600,"message":"denied"}`))
			})

			_, err := client.CreatePost(context.Background(), CreatePostInput{Text: "x"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != "denied" {
				t.Errorf("unexpected api error %+v", apiErr)
			}
			if retry.IsTerminal(err) != tt.terminal {
				t.Errorf("IsTerminal = %v, want %v", retry.IsTerminal(err), tt.terminal)
			}
		})
	}
}

func TestMissingAccessTokenIsTerminal(t *testing.T) {
	client := New(WithAuthorURN("urn:li:person:me"))
	_, err := client.CreatePost(context.Background(), CreatePostInput{Text: "x"})
	if !errors.Is(err, ErrMissingAccessToken) || !retry.IsTerminal(err) {
		t.Errorf("expected terminal ErrMissingAccessToken, got %v", err)
	}
}

func TestGetSocialActivity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.EscapedPath(), "/v2/socialActions/urn%3Ali%3Ashare%3A42") {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"likesSummary":{"totalLikes":12},"commentsSummary":{"aggregatedTotalComments":3}}`))
	})

	metrics, err := NewPostPublisher(client).GetPostMetrics(context.Background(), "urn:li:share:42")
	if err != nil {
		t.Fatalf("GetPostMetrics() error: %v", err)
	}
	if metrics.Likes != 12 || metrics.Comments != 3 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
}

func TestActionExecutor(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})
	exec := NewActionExecutor(client)
	ctx := context.Background()

	target := entity.Target{ID: "urn:li:person:abc"}
	if err := exec.Execute(ctx, engine.ActionInput{ActionType: ledger.ActionConnect, Target: target, Message: "Hi"}); err != nil {
		t.Fatalf("connect error: %v", err)
	}
	if err := exec.Execute(ctx, engine.ActionInput{ActionType: ledger.ActionMessage, Target: target, Message: "Hi"}); err != nil {
		t.Fatalf("message error: %v", err)
	}

	err := exec.Execute(ctx, engine.ActionInput{ActionType: ledger.ActionFollow, Target: target})
	if !errors.Is(err, ErrUnsupportedAction) || !retry.IsTerminal(err) {
		t.Errorf("expected terminal ErrUnsupportedAction, got %v", err)
	}

	if len(paths) != 2 || paths[0] != "/v2/invitations" || paths[1] != "/v2/messages" {
		t.Errorf("unexpected paths %v", paths)
	}
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	var calls atomic.Int32
	breaker := NewBreaker(BreakerConfig{Name: "linkedin-test", FailureThreshold: 2, OpenTimeout: time.Hour}, nil)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		if _, err := client.CreatePost(context.Background(), CreatePostInput{Text: "x"}); err == nil {
			t.Fatal("expected error")
		}
	}

	_, err := client.CreatePost(context.Background(), CreatePostInput{Text: "x"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open breaker, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("open breaker must not reach the server, calls = %d", calls.Load())
	}
	if breaker.State() != "open" {
		t.Errorf("state = %s", breaker.State())
	}
}

func TestBreakerIgnoresTerminalErrors(t *testing.T) {
	breaker := NewBreaker(BreakerConfig{Name: "linkedin-terminal", FailureThreshold: 1, OpenTimeout: time.Hour}, nil)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithBreaker(breaker))

	for i := 0; i < 3; i++ {
		_, _ = client.CreatePost(context.Background(), CreatePostInput{Text: "x"})
	}
	if breaker.State() != "closed" {
		t.Errorf("terminal errors must not open the breaker, state = %s", breaker.State())
	}
}

func TestSimulator(t *testing.T) {
	sim := NewSimulator(nil)
	ctx := context.Background()

	targets, err := sim.FindTargets(ctx, engine.SearchInput{
		RuleType: entity.RuleAutoFollow,
		Criteria: entity.TargetCriteria{Industries: []string{"Fintech"}, JobTitles: []string{"CEO"}},
		Limit:    4,
	})
	if err != nil {
		t.Fatalf("FindTargets() error: %v", err)
	}
	if len(targets) != 4 {
		t.Fatalf("expected 4 targets, got %d", len(targets))
	}
	seen := map[string]bool{}
	for _, tg := range targets {
		if tg.Industry != "Fintech" || !tg.IsSenior() {
			t.Errorf("target does not match criteria: %+v", tg)
		}
		if !strings.HasPrefix(tg.ID, "urn:li:person:") || seen[tg.ID] {
			t.Errorf("unexpected or duplicate id %q", tg.ID)
		}
		seen[tg.ID] = true
	}

	if err := sim.Execute(ctx, engine.ActionInput{ActionType: ledger.ActionFollow, Target: targets[0]}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if sim.Actions("follow") != 1 {
		t.Errorf("Actions(follow) = %d", sim.Actions("follow"))
	}

	out, err := sim.CreatePost(ctx, postpolicy.PublishInput{Text: "hello"})
	if err != nil || !strings.HasPrefix(out.ExternalID, "urn:li:share:") {
		t.Fatalf("CreatePost() = %+v, %v", out, err)
	}
	m1, _ := sim.GetPostMetrics(ctx, out.ExternalID)
	m2, _ := sim.GetPostMetrics(ctx, out.ExternalID)
	if m1 != m2 || m1.Impressions < 500 {
		t.Errorf("metrics must be stable, got %+v and %+v", m1, m2)
	}
}
