package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trustlens/evidence-verifier/internal/fetch"
	"github.com/trustlens/evidence-verifier/internal/models"
)

// MockGuard is a mock implementation of the Guard interface
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Check(ctx context.Context, host string) models.NetworkVerdict {
	args := m.Called(host)
	return args.Get(0).(models.NetworkVerdict)
}

// MockFetcher is a mock implementation of the Fetcher interface
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, target string) (*fetch.Page, error) {
	args := m.Called(target)
	if page := args.Get(0); page != nil {
		return page.(*fetch.Page), args.Error(1)
	}
	return nil, args.Error(1)
}

// allowAll passes every host as a single public address
type allowAll struct{}

func (allowAll) Check(_ context.Context, host string) models.NetworkVerdict {
	return models.NetworkVerdict{Host: host, ResolvedIPs: []string{"93.184.216.34"}, PublicDNSOK: true}
}

func publicVerdict(host string) models.NetworkVerdict {
	return models.NetworkVerdict{Host: host, ResolvedIPs: []string{"93.184.216.34"}, PublicDNSOK: true}
}

func TestVerifier_Verify_Reachable(t *testing.T) {
	guard := &MockGuard{}
	guard.On("Check", "www.example.com").Return(publicVerdict("www.example.com"))
	fetcher := &MockFetcher{}
	fetcher.On("Fetch", "https://www.example.com/study").Return(&fetch.Page{
		Status:      200,
		FinalURL:    "https://www.example.com/study",
		ContentType: "application/pdf",
	}, nil)

	v := NewVerifier(guard, fetcher, fetch.NewClassifier())
	result := v.Verify(context.Background(), "www.example.com/study#section")

	assert.True(t, result.Verified)
	assert.Equal(t, ReasonReachable, result.Reason)
	assert.Equal(t, "https://www.example.com/study", result.NormalizedURL)
	assert.Equal(t, "example.com", result.Domain)
	assert.True(t, result.PublicDNSOK)
	assert.True(t, result.HTTPOK)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, fetch.CategoryPDF, result.Category)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	guard.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestVerifier_Verify_BadURL(t *testing.T) {
	guard := &MockGuard{}
	fetcher := &MockFetcher{}
	v := NewVerifier(guard, fetcher, fetch.NewClassifier())

	result := v.Verify(context.Background(), "ftp://files.example.com/data")

	assert.False(t, result.Verified)
	assert.Equal(t, ReasonBadURL, result.Reason)
	assert.NotNil(t, result.IPs)
	guard.AssertNotCalled(t, "Check", mock.Anything)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestVerifier_Verify_GuardRejectsWithoutFetching(t *testing.T) {
	guard := &MockGuard{}
	guard.On("Check", "localhost").Return(models.NetworkVerdict{
		Host:        "localhost",
		ResolvedIPs: []string{"127.0.0.1"},
		ErrorReason: "non_public_ip:127.0.0.1",
	})
	fetcher := &MockFetcher{}
	v := NewVerifier(guard, fetcher, fetch.NewClassifier())

	result := v.Verify(context.Background(), "http://localhost/admin")

	assert.False(t, result.Verified)
	assert.False(t, result.PublicDNSOK)
	assert.Contains(t, result.Reason, "non_public_ip")
	assert.Equal(t, []string{"127.0.0.1"}, result.IPs)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestVerifier_Verify_FetchFailure(t *testing.T) {
	guard := &MockGuard{}
	guard.On("Check", "slow.example").Return(publicVerdict("slow.example"))
	fetcher := &MockFetcher{}
	fetcher.On("Fetch", "https://slow.example").Return(nil, &fetch.Error{Reason: fetch.ReasonTimeout, Err: context.DeadlineExceeded})
	v := NewVerifier(guard, fetcher, fetch.NewClassifier())

	result := v.Verify(context.Background(), "https://slow.example")

	assert.False(t, result.Verified)
	assert.True(t, result.PublicDNSOK)
	assert.False(t, result.HTTPOK)
	assert.Equal(t, fetch.ReasonTimeout, result.Reason)
}

func TestVerifier_Verify_UnknownFetchError(t *testing.T) {
	guard := &MockGuard{}
	guard.On("Check", "odd.example").Return(publicVerdict("odd.example"))
	fetcher := &MockFetcher{}
	fetcher.On("Fetch", "https://odd.example").Return(nil, errors.New("boom"))
	v := NewVerifier(guard, fetcher, fetch.NewClassifier())

	result := v.Verify(context.Background(), "https://odd.example")

	assert.Equal(t, "http_error:request", result.Reason)
}

func TestVerifier_Verify_ErrorStatus(t *testing.T) {
	guard := &MockGuard{}
	guard.On("Check", "example.org").Return(publicVerdict("example.org"))
	fetcher := &MockFetcher{}
	fetcher.On("Fetch", "https://example.org/missing").Return(&fetch.Page{Status: 404, ContentType: "text/html"}, nil)
	v := NewVerifier(guard, fetcher, fetch.NewClassifier())

	result := v.Verify(context.Background(), "https://example.org/missing")

	assert.False(t, result.Verified)
	assert.False(t, result.HTTPOK)
	assert.Equal(t, 404, result.StatusCode)
	assert.Equal(t, "http_status_404", result.Reason)
	assert.Empty(t, result.Category)
}

func TestVerifier_VerifyAll_PreservesOrder(t *testing.T) {
	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
	}))
	defer server.Close()

	var targets []string
	for i := 0; i < 12; i++ {
		suffix := fmt.Sprintf("/doc/%d", i)
		if i%4 == 0 {
			suffix = fmt.Sprintf("/doc/%d/gone", i)
		}
		targets = append(targets, server.URL+suffix)
	}

	fetcher := fetch.NewFetcher(fetch.Options{Timeout: 2 * time.Second})
	v := NewVerifier(allowAll{}, fetcher, fetch.NewClassifier(), WithWorkers(3))

	results := v.VerifyAll(context.Background(), targets)

	require.Len(t, results, len(targets))
	for i, result := range results {
		assert.Equal(t, targets[i], result.InputURL)
		if i%4 == 0 {
			assert.False(t, result.Verified, targets[i])
			assert.Equal(t, "http_status_410", result.Reason)
		} else {
			assert.True(t, result.Verified, targets[i])
			assert.Equal(t, fetch.CategoryWebsite, result.Category)
		}
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestVerifier_VerifyAll_Empty(t *testing.T) {
	v := NewVerifier(allowAll{}, &MockFetcher{}, fetch.NewClassifier())
	assert.Empty(t, v.VerifyAll(context.Background(), nil))
}

func TestVerifier_RateLimitHonorsContext(t *testing.T) {
	fetcher := &MockFetcher{}
	fetcher.On("Fetch", mock.Anything).Return(&fetch.Page{Status: 200, ContentType: "text/plain"}, nil)
	v := NewVerifier(allowAll{}, fetcher, fetch.NewClassifier(), WithRateLimit(0.001))

	first := v.Verify(context.Background(), "https://example.com/a")
	assert.True(t, first.Verified)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := v.Verify(ctx, "https://example.com/b")
	assert.False(t, second.Verified)
	assert.Equal(t, fetch.ReasonTimeout, second.Reason)
}

func TestRegisteredDomain(t *testing.T) {
	assert.Equal(t, "bbc.co.uk", RegisteredDomain("www.news.bbc.co.uk"))
	assert.Equal(t, "example.com", RegisteredDomain("example.com"))
	assert.Equal(t, "93.184.216.34", RegisteredDomain("93.184.216.34"))
	assert.Equal(t, "", RegisteredDomain(""))
	assert.Equal(t, "nih.gov", DomainOf("https://www.nih.gov/news?id=1"))
}

func TestVerifier_VerifyAll_Observer(t *testing.T) {
	fetcher := &MockFetcher{}
	fetcher.On("Fetch", mock.Anything).Return(&fetch.Page{Status: 200, ContentType: "text/plain"}, nil)

	var observed, verified int32
	v := NewVerifier(allowAll{}, fetcher, fetch.NewClassifier(), WithObserver(func(result models.VerificationResult, elapsed time.Duration) {
		atomic.AddInt32(&observed, 1)
		if result.Verified {
			atomic.AddInt32(&verified, 1)
		}
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	}))

	v.VerifyAll(context.Background(), []string{"https://a.example", "https://b.example", "ftp://c.example"})

	assert.Equal(t, int32(3), atomic.LoadInt32(&observed))
	assert.Equal(t, int32(2), atomic.LoadInt32(&verified))
}
