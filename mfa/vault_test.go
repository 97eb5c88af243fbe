package mfa_test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/gigledger/gigledger/mfa"
	mfarepofake "github.com/gigledger/gigledger/mfa/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testUserID = "user-1"

func newTestVault(t *testing.T) *mfa.Vault {
	t.Helper()

	vault, err := mfa.NewVault(
		mfarepofake.NewFakeBackupCodeRepo(),
		zerolog.Nop(),
		mfa.WithBcryptCost(bcrypt.MinCost),
	)
	require.NoError(t, err)
	return vault
}

func TestIssueProducesFormattedCodes(t *testing.T) {
	vault := newTestVault(t)

	codes, err := vault.Issue(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, codes, mfa.DefaultBackupCodeCount)

	format := regexp.MustCompile(`^[a-z2-7]{5}-[a-z2-7]{5}$`)
	seen := make(map[string]struct{})
	for _, code := range codes {
		require.Regexp(t, format, code)
		_, dup := seen[code]
		require.False(t, dup, "duplicate backup code issued")
		seen[code] = struct{}{}
	}

	remaining, err := vault.RemainingCount(context.Background(), testUserID)
	require.NoError(t, err)
	require.Equal(t, mfa.DefaultBackupCodeCount, remaining)
}

func TestConsumeSucceedsExactlyOnce(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()

	codes, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	ok, err := vault.Consume(ctx, testUserID, codes[0])
	require.NoError(t, err)
	require.True(t, ok)

	// Replay of the same code must fail without side effects.
	ok, err = vault.Consume(ctx, testUserID, codes[0])
	require.NoError(t, err)
	require.False(t, ok)

	remaining, err := vault.RemainingCount(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, mfa.DefaultBackupCodeCount-1, remaining)
}

func TestConsumeAcceptsSloppyInput(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()

	codes, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	// Separator stripped, upper cased, padded: still one valid consumption.
	sloppy := "  " + mfa.CanonicalizeBackupCode(codes[1]) + " "
	ok, err := vault.Consume(ctx, testUserID, sloppy)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConsumeUnknownCode(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()

	_, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	ok, err := vault.Consume(ctx, testUserID, "zzzzz-zzzzz")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = vault.Consume(ctx, testUserID, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReissueInvalidatesPreviousSet(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()

	oldCodes, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	newCodes, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	for _, code := range oldCodes {
		ok, err := vault.Consume(ctx, testUserID, code)
		require.NoError(t, err)
		require.False(t, ok, "old code %q should be dead after regeneration", code)
	}

	ok, err := vault.Consume(ctx, testUserID, newCodes[0])
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConcurrentConsumeSameCode(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()

	codes, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	const attempts = 16
	results := make(chan bool, attempts)
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			ok, err := vault.Consume(ctx, testUserID, codes[0])
			results <- ok
			errs <- err
		}()
	}
	start.Done()
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	require.Equal(t, 1, winners, "exactly one concurrent consumption may succeed")
}

func TestClearRemovesAllCodes(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()

	_, err := vault.Issue(ctx, testUserID)
	require.NoError(t, err)

	require.NoError(t, vault.Clear(ctx, testUserID))

	remaining, err := vault.RemainingCount(ctx, testUserID)
	require.NoError(t, err)
	require.Zero(t, remaining)
}
