package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

func newTestCodec() *Codec {
	return NewCodec("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 7*24*time.Hour, "unyt")
}

func TestIssueAndVerify_Access(t *testing.T) {
	codec := newTestCodec()

	token, err := codec.Issue("acc-1", domain.TierPremium, KindAccess)
	require.NoError(t, err)

	claims, err := codec.Verify(token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "premium", claims.Tier)
	assert.Equal(t, string(KindAccess), claims.Kind)
}

func TestIssueAndVerify_Refresh(t *testing.T) {
	codec := newTestCodec()

	token, err := codec.Issue("acc-1", domain.TierFree, KindRefresh)
	require.NoError(t, err)

	claims, err := codec.Verify(token, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	// Refresh tokens carry no tier; it is re-read at rotation time.
	assert.Empty(t, claims.Tier)
}

func TestVerify_KindSeparation(t *testing.T) {
	codec := newTestCodec()

	access, err := codec.Issue("acc-1", domain.TierFree, KindAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue("acc-1", domain.TierFree, KindRefresh)
	require.NoError(t, err)

	_, err = codec.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)

	_, err = codec.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestVerify_CrossSecretRejected(t *testing.T) {
	codec := newTestCodec()
	other := NewCodec("another-access-secret", "another-refresh-secret", time.Minute, time.Hour, "unyt")

	token, err := codec.Issue("acc-1", domain.TierFree, KindAccess)
	require.NoError(t, err)

	_, err = other.Verify(token, KindAccess)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestVerify_Expired(t *testing.T) {
	codec := NewCodec("access-secret-for-tests", "refresh-secret-for-tests", -time.Minute, -time.Minute, "unyt")

	token, err := codec.Issue("acc-1", domain.TierFree, KindAccess)
	require.NoError(t, err)

	_, err = codec.Verify(token, KindAccess)
	assert.ErrorIs(t, err, apperrors.ErrCredentialExpired)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestVerify_Malformed(t *testing.T) {
	codec := newTestCodec()

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := codec.Verify(tok, KindAccess)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredential, tok)
	}
}

func TestVerify_UnknownKind(t *testing.T) {
	codec := newTestCodec()
	_, err := codec.Verify("whatever", Kind("session"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestIssue_UnknownKind(t *testing.T) {
	codec := newTestCodec()
	_, err := codec.Issue("acc-1", domain.TierFree, Kind("session"))
	assert.Error(t, err)
}

func TestParseWellFormed_ToleratesExpiry(t *testing.T) {
	codec := NewCodec("access-secret-for-tests", "refresh-secret-for-tests", -time.Minute, -time.Minute, "unyt")

	token, err := codec.Issue("acc-1", domain.TierFree, KindRefresh)
	require.NoError(t, err)

	_, err = codec.Verify(token, KindRefresh)
	require.ErrorIs(t, err, apperrors.ErrCredentialExpired)

	claims, err := codec.ParseWellFormed(token, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
}

func TestParseWellFormed_StillChecksSignatureAndKind(t *testing.T) {
	codec := newTestCodec()
	other := NewCodec("another-access-secret", "another-refresh-secret", time.Minute, time.Hour, "unyt")

	refresh, err := codec.Issue("acc-1", domain.TierFree, KindRefresh)
	require.NoError(t, err)

	_, err = other.ParseWellFormed(refresh, KindRefresh)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)

	access, err := codec.Issue("acc-1", domain.TierFree, KindAccess)
	require.NoError(t, err)

	_, err = codec.ParseWellFormed(access, KindRefresh)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)

	_, err = codec.ParseWellFormed("not-a-jwt", KindRefresh)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("some-token")

	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint("some-token"))
	assert.NotEqual(t, fp, Fingerprint("some-other-token"))
}
