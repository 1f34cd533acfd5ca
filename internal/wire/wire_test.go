package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	t.Parallel()

	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	require.Equal(t, CodecName, c.Name())
}

func TestEnvelope_OmitsAbsentFields(t *testing.T) {
	t.Parallel()

	b, err := Codec{}.Marshal(Fail[Item]("Prompt not found"))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"error":"Prompt not found"}`, string(b))

	var env Envelope[[]uint64]
	require.NoError(t, Codec{}.Unmarshal([]byte(`{"success":true,"data":[1,9]}`), &env))
	require.True(t, env.Success)
	require.Equal(t, []uint64{1, 9}, *env.Data)
	require.Nil(t, env.Error)

	require.Error(t, Codec{}.Unmarshal([]byte(`{`), &env))
}
