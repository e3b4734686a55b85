package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryStatusDerivation(t *testing.T) {
	var nilQuery *Query
	assert.Equal(t, StatusUnknown, nilQuery.Status())
	assert.Equal(t, StatusUnknown, (&Query{}).Status())

	q := &Query{Request: Request{Requester: Address{1}}}
	assert.Equal(t, StatusPosted, q.Status())

	q.Claim.Claimant = Address{2}
	assert.Equal(t, StatusClaimed, q.Status())

	q.InclusionHash = Hash{3}
	assert.Equal(t, StatusIncluded, q.Status())

	q.Response.ProofRef = Hash{4}
	assert.Equal(t, StatusReported, q.Status())
}

func TestQueryCloneIsDeep(t *testing.T) {
	q := &Query{
		Request:  Request{Requester: Address{1}, Payload: []byte{1, 2}},
		Response: Response{Result: []byte{3}},
	}
	c := q.Clone()
	c.Request.Payload[0] = 9
	c.Response.Result[0] = 9
	assert.Equal(t, byte(1), q.Request.Payload[0])
	assert.Equal(t, byte(3), q.Response.Result[0])
}

func TestQueryIDShapes(t *testing.T) {
	id := SequenceID(42)
	n, ok := id.Sequence()
	require.True(t, ok)
	assert.Equal(t, uint64(42), n)
	assert.Equal(t, "#42", id.String())

	parsed, err := ParseQueryID("#42")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	content := ContentID([]byte("payload"))
	_, ok = content.Sequence()
	assert.False(t, ok)
	parsed, err = ParseQueryID(content.String())
	require.NoError(t, err)
	assert.Equal(t, content, parsed)

	_, err = ParseQueryID("#0")
	assert.Error(t, err)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("claim")
	require.NoError(t, err)
	assert.True(t, v.HasClaims())

	v, err = ParseVariant("direct")
	require.NoError(t, err)
	assert.False(t, v.ContentAddressed())

	_, err = ParseVariant("sideways")
	assert.Error(t, err)
}

func TestAddressFromPublicKeyIsStable(t *testing.T) {
	a := AddressFromPublicKey([]byte("key"))
	b := AddressFromPublicKey([]byte("key"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, AddressFromPublicKey([]byte("other")))

	parsed, err := ParseAddress("0x" + a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestLeaves(t *testing.T) {
	id := ContentID([]byte("p"))
	digest := HashBytes([]byte("p"))
	assert.Equal(t, HashBytes(append(id[:], digest[:]...)), RequestLeaf(id, digest))

	incl := RequestLeaf(id, digest)
	assert.Equal(t, HashBytes(append(incl[:], 0x01, 0x02)), TallyLeaf(incl, []byte{0x01, 0x02}))
	assert.NotEqual(t, TallyLeaf(incl, []byte{1}), TallyLeaf(incl, []byte{2}))
}
