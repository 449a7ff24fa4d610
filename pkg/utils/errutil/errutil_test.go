package errutil_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/strategos/pkg/utils/errutil"
)

// initCountingSentry installs a client whose events are counted and dropped.
// The DSN stays empty so nothing leaves the process.
func initCountingSentry(t *testing.T, captured *int32) {
	t.Helper()
	err := sentry.Init(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			atomic.AddInt32(captured, 1)
			return nil
		},
	})
	gt.NoError(t, err).Required()
}

func TestHandleHTTP_CapturesServerErrors(t *testing.T) {
	var captured int32
	initCountingSentry(t, &captured)

	// plain context without a request-scoped hub still reaches the global one
	ctx := context.Background()
	gt.Value(t, sentry.GetHubFromContext(ctx)).Nil()

	rec := httptest.NewRecorder()
	errutil.HandleHTTP(ctx, rec, goerr.New("backend exploded"), http.StatusInternalServerError)

	gt.Number(t, rec.Code).Equal(http.StatusInternalServerError)
	gt.Number(t, atomic.LoadInt32(&captured)).Equal(1)
}

func TestHandleHTTP_SkipsClientErrors(t *testing.T) {
	var captured int32
	initCountingSentry(t, &captured)

	rec := httptest.NewRecorder()
	errutil.HandleHTTP(context.Background(), rec, goerr.New("bad input"), http.StatusBadRequest)

	gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
	gt.Number(t, atomic.LoadInt32(&captured)).Equal(0)
}

func TestHandle_CapturesAndReturnsError(t *testing.T) {
	var captured int32
	initCountingSentry(t, &captured)

	orig := goerr.New("worker crashed")
	got := errutil.Handle(context.Background(), orig, "background job failed")

	gt.Value(t, got).Equal(error(orig))
	gt.Number(t, atomic.LoadInt32(&captured)).Equal(1)
}

func TestHandle_NilError(t *testing.T) {
	gt.Value(t, errutil.Handle(context.Background(), nil, "nothing")).Nil()
}

func TestHandleHTTP_UsesContextHubWhenPresent(t *testing.T) {
	var globalCaptured int32
	initCountingSentry(t, &globalCaptured)

	var scopedCaptured int32
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			atomic.AddInt32(&scopedCaptured, 1)
			return nil
		},
	})
	gt.NoError(t, err).Required()

	hub := sentry.NewHub(client, sentry.NewScope())
	ctx := sentry.SetHubOnContext(context.Background(), hub)

	rec := httptest.NewRecorder()
	errutil.HandleHTTP(ctx, rec, goerr.New("request blew up"), http.StatusBadGateway)

	gt.Number(t, atomic.LoadInt32(&scopedCaptured)).Equal(1)
	gt.Number(t, atomic.LoadInt32(&globalCaptured)).Equal(0)
}
