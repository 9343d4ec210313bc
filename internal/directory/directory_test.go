package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func openContractorRepo(t *testing.T) *db.ContractorRepo {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "directory-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return db.NewContractorRepo(database.SQL())
}

func seedPlumbers(t *testing.T, repo *db.ContractorRepo, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		c := &db.Contractor{
			Name:      fmt.Sprintf("Plumber %02d", i),
			Specialty: "plumbing",
			Rating:    5.0 - float64(i)*0.1,
			Active:    true,
		}
		if err := repo.Create(context.Background(), c); err != nil {
			t.Fatalf("seed contractor: %v", err)
		}
	}
}

func TestSearchEmptySpecialtyReturnsEmptyResult(t *testing.T) {
	service := NewService(openContractorRepo(t), nil)

	result, err := service.Search(context.Background(), agent.ContractorSearchInput{TicketID: "t-1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result == nil || len(result.Contractors) != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
}

func TestSearchCapsMatchesAtFive(t *testing.T) {
	repo := openContractorRepo(t)
	seedPlumbers(t, repo, 8)
	service := NewService(repo, nil)

	result, err := service.Search(context.Background(), agent.ContractorSearchInput{
		TicketID:  "t-1",
		Specialty: "plumbing",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Contractors) != 5 {
		t.Fatalf("matches = %d, want 5", len(result.Contractors))
	}
	// Highest rated first, per the repo ordering.
	if result.Contractors[0].Name != "Plumber 00" {
		t.Fatalf("first match = %q", result.Contractors[0].Name)
	}
	for _, match := range result.Contractors {
		if match.Source != "internal" {
			t.Fatalf("source = %q, want internal", match.Source)
		}
	}
}

func TestSearchHonorsMaxResults(t *testing.T) {
	repo := openContractorRepo(t)
	seedPlumbers(t, repo, 4)
	service := NewService(repo, nil)

	result, err := service.Search(context.Background(), agent.ContractorSearchInput{
		TicketID:   "t-1",
		Specialty:  "plumbing",
		MaxResults: 2,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Contractors) != 2 {
		t.Fatalf("matches = %d, want 2", len(result.Contractors))
	}
}

func TestSearchNormalizesSpecialty(t *testing.T) {
	repo := openContractorRepo(t)
	seedPlumbers(t, repo, 1)
	service := NewService(repo, nil)

	result, err := service.Search(context.Background(), agent.ContractorSearchInput{
		TicketID:  "t-1",
		Specialty: "  Plumbing ",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Contractors) != 1 {
		t.Fatalf("matches = %d, want 1", len(result.Contractors))
	}
}

func TestSearchTopsUpFromExternalDirectory(t *testing.T) {
	repo := openContractorRepo(t)
	seedPlumbers(t, repo, 2)

	external := &ExternalClient{
		BaseURL: "http://directory.test",
		Token:   "secret",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				if req.URL.Path != "/v1/contractors" {
					t.Fatalf("path = %q", req.URL.Path)
				}
				if got := req.URL.Query().Get("specialty"); got != "plumbing" {
					t.Fatalf("specialty = %q", got)
				}
				if got := req.URL.Query().Get("limit"); got != "3" {
					t.Fatalf("limit = %q", got)
				}
				if got := req.Header.Get("Authorization"); got != "Bearer secret" {
					t.Fatalf("auth = %q", got)
				}
				body := `{"contractors":[{"id":"x1","name":"Remote Rooter","rating":4.5},{"id":"x2","name":"Far Pipes","rating":4.2}]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Header:     http.Header{"Content-Type": []string{"application/json"}},
					Body:       io.NopCloser(strings.NewReader(body)),
				}, nil
			}),
		},
	}
	service := NewService(repo, external)

	result, err := service.Search(context.Background(), agent.ContractorSearchInput{
		TicketID:  "t-1",
		Specialty: "plumbing",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Contractors) != 4 {
		t.Fatalf("matches = %d, want 4", len(result.Contractors))
	}
	if result.Contractors[2].Source != "external" || result.Contractors[2].Name != "Remote Rooter" {
		t.Fatalf("third match = %+v", result.Contractors[2])
	}
}

func TestSearchExternalFailureIsHardError(t *testing.T) {
	repo := openContractorRepo(t)
	external := &ExternalClient{
		BaseURL: "http://directory.test",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusBadGateway,
					Header:     http.Header{"Content-Type": []string{"application/json"}},
					Body:       io.NopCloser(strings.NewReader(`{"error":"upstream down"}`)),
				}, nil
			}),
		},
	}
	service := NewService(repo, external)

	_, err := service.Search(context.Background(), agent.ContractorSearchInput{
		TicketID:  "t-1",
		Specialty: "plumbing",
	})
	if err == nil || !strings.Contains(err.Error(), "external contractor lookup") {
		t.Fatalf("err = %v", err)
	}
}
