// Package keyring wraps the zalando/go-keyring package with timeouts so a
// hung keychain daemon cannot stall the CLI. The GitLab access token is the
// only secret evergreen stores.
package keyring

import (
	"errors"
	"time"

	"github.com/zalando/go-keyring"
)

// gitlabService is the keychain service name under which the GitLab token
// is stored.
const gitlabService = "evergreen-gitlab"

// ErrNotFound is returned when no secret exists for the given service+user.
var ErrNotFound = errors.New("secret not found in keyring")

// TimeoutError is returned when a keyring operation exceeds the deadline.
type TimeoutError struct {
	message string
}

func (e *TimeoutError) Error() string {
	return e.message
}

// SetToken stores the GitLab access token for the given GitLab host.
func SetToken(host, token string) error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- keyring.Set(gitlabService, host, token)
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(3 * time.Second):
		return &TimeoutError{"timeout while trying to set secret in keyring"}
	}
}

// GetToken retrieves the GitLab access token for the given GitLab host.
func GetToken(host string) (string, error) {
	ch := make(chan struct {
		val string
		err error
	}, 1)
	go func() {
		defer close(ch)
		val, err := keyring.Get(gitlabService, host)
		ch <- struct {
			val string
			err error
		}{val, err}
	}()
	select {
	case res := <-ch:
		if errors.Is(res.err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return res.val, res.err
	case <-time.After(3 * time.Second):
		return "", &TimeoutError{"timeout while trying to get secret from keyring"}
	}
}

// DeleteToken removes the stored GitLab access token for the given host.
func DeleteToken(host string) error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- keyring.Delete(gitlabService, host)
	}()
	select {
	case err := <-ch:
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return err
	case <-time.After(3 * time.Second):
		return &TimeoutError{"timeout while trying to delete secret from keyring"}
	}
}

// MockInit sets up an in-memory keyring backend for tests.
func MockInit() {
	keyring.MockInit()
}
