package bytelevel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	require.Len(t, CharBytes, 256)
	assert.Equal(t, 'Ġ', Space)
	assert.Equal(t, 'Ċ', BytesChar['\n'])
	assert.Equal(t, 'a', BytesChar['a'])
	alphabet := Alphabet()
	require.Len(t, alphabet, 256)
	assert.Equal(t, '!', alphabet[0])
}

func TestEncodeDecode(t *testing.T) {
	var encoded []rune
	for _, r := range "héllo 世界" {
		encoded = append(encoded, Encode(r)...)
	}
	assert.Equal(t, "hÃ©lloĠä¸ĸçķĮ", string(encoded))
	assert.Equal(t, "héllo 世界", string(Decode(string(encoded))))
}
