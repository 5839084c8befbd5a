package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/vocabsync/internal/progress"
	"github.com/JakeFAU/vocabsync/internal/vocab"
)

type fakeChecker struct {
	ok  bool
	err error
	got vocab.Credential
}

func (f *fakeChecker) CheckLogin(_ context.Context, cred vocab.Credential) (bool, error) {
	f.got = cred
	return f.ok, f.err
}

type loginRecorder struct {
	success []string
	failed  int
}

func (r *loginRecorder) observer() progress.LoginFuncs {
	return progress.LoginFuncs{
		OnLoggedIn:    func(c string) { r.success = append(r.success, c) },
		OnLoginFailed: func() { r.failed++ },
	}
}

func TestLoginCheckOutcomes(t *testing.T) {
	t.Parallel()

	cred := vocab.Credential{"sid": "abc"}
	tests := []struct {
		name      string
		checker   *fakeChecker
		want      bool
		success   []string
		failed    int
		warnCount int
	}{
		{name: "logged in", checker: &fakeChecker{ok: true}, want: true, success: []string{`{"sid":"abc"}`}},
		{name: "logged out", checker: &fakeChecker{ok: false}, failed: 1},
		{name: "check error", checker: &fakeChecker{ok: true, err: errors.New("timeout")}, failed: 1, warnCount: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.WarnLevel)
			rec := &loginRecorder{}
			check := NewLoginCheck(tt.checker, cred, rec.observer(), zap.New(core))

			require.Equal(t, tt.want, check.Run(context.Background()))
			require.Equal(t, tt.success, rec.success)
			require.Equal(t, tt.failed, rec.failed)
			require.Equal(t, cred, tt.checker.got)
			require.Equal(t, tt.warnCount, logs.Len())
		})
	}
}
