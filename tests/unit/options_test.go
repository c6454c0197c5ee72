package unit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/urlstream/pkg/options"
)

func TestOptionBagDefaults(t *testing.T) {
	b := options.NewBag()
	require.True(t, b.VerifyPeer())
	require.Equal(t, "", b.CACert())
	require.Equal(t, options.ClientCertPaths{}, b.ClientCert())
}

func TestOptionBagSetGet(t *testing.T) {
	var b options.Bag
	b.SetVerifyPeer(false)
	require.False(t, b.VerifyPeer())

	b.SetVerifyPeer(true)
	require.True(t, b.VerifyPeer())

	b.SetCACert("/etc/ssl/ca.pem")
	require.Equal(t, "/etc/ssl/ca.pem", b.CACert())

	paths := options.ClientCertPaths{CertPath: "c.pem", KeyPath: "k.pem"}
	b.SetClientCert(paths)
	require.Equal(t, paths, b.ClientCert())
}

func TestOptionBagClearRestoresDefault(t *testing.T) {
	b := options.NewBag()
	b.SetVerifyPeer(false)
	require.False(t, b.VerifyPeer())
	b.ClearVerifyPeer()
	require.True(t, b.VerifyPeer())

	b.SetCACert("/some/path")
	b.ClearCACert()
	require.Equal(t, "", b.CACert())

	b.SetClientCert(options.ClientCertPaths{CertPath: "c", KeyPath: "k"})
	b.ClearClientCert()
	require.Equal(t, options.ClientCertPaths{}, b.ClientCert())
}

func TestOptionBagCloneIsIndependent(t *testing.T) {
	b := options.NewBag()
	b.SetCACert("/original.pem")

	clone := b.Clone()
	clone.SetCACert("/clone.pem")

	require.Equal(t, "/original.pem", b.CACert())
	require.Equal(t, "/clone.pem", clone.CACert())
}
