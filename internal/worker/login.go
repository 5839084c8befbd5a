package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/progress"
	"github.com/JakeFAU/vocabsync/internal/vocab"
)

// LoginChecker verifies a stored session against the remote service.
type LoginChecker interface {
	CheckLogin(ctx context.Context, cred vocab.Credential) (bool, error)
}

// LoginCheck reports whether a credential is still logged in.
type LoginCheck struct {
	checker    LoginChecker
	credential vocab.Credential
	observer   progress.LoginObserver
	logger     *zap.Logger
}

// NewLoginCheck constructs a LoginCheck.
func NewLoginCheck(
	checker LoginChecker,
	credential vocab.Credential,
	observer progress.LoginObserver,
	logger *zap.Logger,
) *LoginCheck {
	if observer == nil {
		observer = progress.LoginFuncs{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginCheck{
		checker:    checker,
		credential: credential,
		observer:   observer,
		logger:     logger,
	}
}

// Run emits exactly one of LoggedIn (with the JSON credential) or
// LoginFailed and reports which. Checker errors count as a failed login and
// are logged.
func (l *LoginCheck) Run(ctx context.Context) bool {
	ok, err := l.checker.CheckLogin(ctx, l.credential)
	if err != nil {
		l.logger.Warn("login check failed", zap.Error(err))
		l.observer.LoginFailed()
		return false
	}
	if !ok {
		l.logger.Info("session is not logged in")
		l.observer.LoginFailed()
		return false
	}
	serialized, err := l.credential.Serialize()
	if err != nil {
		l.logger.Warn("serialize credential", zap.Error(err))
		l.observer.LoginFailed()
		return false
	}
	l.logger.Info("session is logged in", zap.Int("cookies", len(l.credential)))
	l.observer.LoggedIn(serialized)
	return true
}
