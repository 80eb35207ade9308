package tshelper

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteHost(t *testing.T) {
	who, err := RemoteHost(t.Context(), "192.0.2.7:50312")
	require.NoError(t, err)
	assert.Equal(t, "guest@192.0.2.7", who)

	who, err = RemoteHost(t.Context(), "[2001:db8::1]:22")
	require.NoError(t, err)
	assert.Equal(t, "guest@2001:db8::1", who)

	_, err = RemoteHost(t.Context(), "nonsense")
	require.Error(t, err)
}

func TestTCPListeners(t *testing.T) {
	l, err := NewTCPListeners("127.0.0.1", 0, 0)
	require.NoError(t, err)

	assert.Nil(t, l.Client)
	require.NotNil(t, l.Identify)
	assert.NotEqual(t, l.Ssh.Addr().String(), l.Http.Addr().String())

	conn, err := net.Dial("tcp", l.Ssh.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, _, err = l.WaitForTailscaleIP(t.Context())
	require.Error(t, err)

	require.NoError(t, l.Close())
}
