package wallet

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	junkMnemonic    = "test test test test test test test test test test test junk"

	// Widely published vectors for m/44'/60'/0'/0/{0,1}.
	abandonAddress0 = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	junkAddress0    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	junkAddress1    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	junkPrivateKey0 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// failingReader simulates an unavailable entropy source.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

// --- Mnemonic tests ---

func TestGenerateMnemonic_WordCounts(t *testing.T) {
	tests := []struct {
		bits  int
		words int
	}{
		{Mnemonic12Words, 12},
		{Mnemonic15Words, 15},
		{Mnemonic18Words, 18},
		{Mnemonic21Words, 21},
		{Mnemonic24Words, 24},
	}
	for _, tt := range tests {
		mnemonic, err := GenerateMnemonic(tt.bits)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(mnemonic), tt.words)
		assert.True(t, ValidateMnemonic(mnemonic), "generated mnemonic should be valid")
	}
}

func TestGenerateMnemonic_InvalidEntropy(t *testing.T) {
	_, err := GenerateMnemonic(64)
	assert.ErrorIs(t, err, ErrInvalidEntropy)

	_, err = GenerateMnemonic(129)
	assert.ErrorIs(t, err, ErrInvalidEntropy)
}

func TestGenerateMnemonic_EntropyUnavailable(t *testing.T) {
	f := &Factory{Rand: failingReader{}}
	_, err := f.GenerateMnemonic(Mnemonic12Words)
	assert.ErrorIs(t, err, ErrEntropyUnavailable)

	_, err = f.GenerateWallet(Mnemonic12Words)
	assert.ErrorIs(t, err, ErrEntropyUnavailable)
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid 12-word", abandonMnemonic, true},
		{"extra whitespace", "  abandon abandon abandon abandon abandon abandon\n abandon abandon abandon abandon abandon about ", true},
		{"upper case", strings.ToUpper(abandonMnemonic), true},
		{"bad checksum", strings.Replace(abandonMnemonic, "about", "abandon", 1), false},
		{"invalid words", "foo bar baz qux quux corge grault garply waldo fred plugh xyzzy", false},
		{"empty", "", false},
		{"partial", "abandon abandon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateMnemonic(tt.mnemonic))
		})
	}
}

func TestSeedFromMnemonic_Deterministic(t *testing.T) {
	seed1, err := SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)
	seed2, err := SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)

	assert.Equal(t, seed1, seed2)
	assert.Len(t, seed1, 64, "BIP39 seed should be 64 bytes")
}

// --- Derivation tests ---

func TestFromMnemonic_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		index    uint32
		address  string
	}{
		{"abandon index 0", abandonMnemonic, 0, abandonAddress0},
		{"junk index 0", junkMnemonic, 0, junkAddress0},
		{"junk index 1", junkMnemonic, 1, junkAddress1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := FromMnemonic(tt.mnemonic, tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.address, key.Address.Hex())
			assert.Equal(t, tt.index, key.Path[len(key.Path)-1])
		})
	}
}

// These mnemonics have an intermediate hardened key starting with a 0x00
// byte. Other BIP32 wallets hash it as a full 32-byte ser256(k); skipping the
// padding yields the "unpadded" address instead.
func TestFromMnemonic_LeadingZeroIntermediateKey(t *testing.T) {
	tests := []struct {
		mnemonic string
		index    uint32
		address  string
		unpadded string
	}{
		{
			"raccoon dune welcome stage find eight night invest piece dirt cherry supply", 0,
			"0xA2f26c6c417741066640D115eb31A215968a2094", "0x4C418b3107955ab0Cf1f2Fd07ED8f643670D73af",
		},
		{
			"inmate tiny avocado north twenty glory weapon mystery erode crop retreat question", 1,
			"0x6a8CCaB627A074CFc75d52d07Ab06e30920F7C30", "0x8FbFDC09C2d4195eAaD46dc9720Cc622F0D20d0b",
		},
	}

	for _, tt := range tests {
		t.Run(strings.Fields(tt.mnemonic)[0], func(t *testing.T) {
			require.True(t, ValidateMnemonic(tt.mnemonic))
			key, err := FromMnemonic(tt.mnemonic, tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.address, key.Address.Hex())
			assert.NotEqual(t, tt.unpadded, key.Address.Hex())
		})
	}
}

func TestFromMnemonic_PrivateKeyMatchesVector(t *testing.T) {
	key, err := FromMnemonic(junkMnemonic, 0)
	require.NoError(t, err)
	assert.Equal(t, junkPrivateKey0, hex.EncodeToString(key.Bytes()))
	assert.Equal(t, key.Address, crypto.PubkeyToAddress(key.PrivateKey.PublicKey))
}

func TestFromMnemonic_Deterministic(t *testing.T) {
	k1, err := FromMnemonic(abandonMnemonic, 3)
	require.NoError(t, err)
	k2, err := FromMnemonic(abandonMnemonic, 3)
	require.NoError(t, err)

	assert.Equal(t, k1.Address, k2.Address)
	assert.Equal(t, k1.Bytes(), k2.Bytes())
	assert.Equal(t, "m/44'/60'/0'/0/3", k1.Path.String())
}

func TestFromMnemonic_Invalid(t *testing.T) {
	_, err := FromMnemonic("invalid mnemonic words here", 0)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = FromMnemonic(strings.Replace(abandonMnemonic, "about", "abandon", 1), 0)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestFromMnemonic_IndexOutOfRange(t *testing.T) {
	_, err := FromMnemonic(abandonMnemonic, MaxAccountIndex+1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFromMnemonicPath(t *testing.T) {
	viaPath, err := FromMnemonicPath(junkMnemonic, "m/44'/60'/0'/0/1")
	require.NoError(t, err)
	assert.Equal(t, junkAddress1, viaPath.Address.Hex())

	_, err = FromMnemonicPath(junkMnemonic, "not/a/path")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestGenerateWallet(t *testing.T) {
	key, err := GenerateWallet(Mnemonic12Words)
	require.NoError(t, err)

	assert.Len(t, strings.Fields(key.Mnemonic), 12)
	assert.Len(t, key.Bytes(), PrivateKeyLen)

	again, err := FromMnemonic(key.Mnemonic, 0)
	require.NoError(t, err)
	assert.Equal(t, key.Address, again.Address, "generated wallet should re-derive from its mnemonic")

	other, err := GenerateWallet(Mnemonic12Words)
	require.NoError(t, err)
	assert.NotEqual(t, key.Mnemonic, other.Mnemonic)
}

// --- Private key tests ---

func TestFromPrivateKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare hex", junkPrivateKey0},
		{"0x prefix", "0x" + junkPrivateKey0},
		{"surrounding whitespace", "  0x" + junkPrivateKey0 + "\n"},
		{"upper case", strings.ToUpper(junkPrivateKey0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := FromPrivateKey(tt.input)
			require.NoError(t, err)
			assert.Equal(t, junkAddress0, key.Address.Hex())
			assert.Empty(t, key.Mnemonic)
			assert.Nil(t, key.Path)
		})
	}
}

func TestFromPrivateKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", junkPrivateKey0[:62]},
		{"too long", junkPrivateKey0 + "00"},
		{"not hex", strings.Repeat("zz", 32)},
		{"zero scalar", strings.Repeat("00", 32)},
		{"above curve order", strings.Repeat("ff", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromPrivateKey(tt.input)
			assert.ErrorIs(t, err, ErrInvalidPrivateKey)
		})
	}
}

func TestFromPrivateKeyBytes_WrongLength(t *testing.T) {
	_, err := FromPrivateKeyBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestKeyZero(t *testing.T) {
	key, err := FromMnemonic(abandonMnemonic, 0)
	require.NoError(t, err)

	key.Zero()
	assert.Empty(t, key.Mnemonic)
	assert.Equal(t, 0, key.PrivateKey.D.Sign())
}

// --- Network tests ---

func TestGetNetwork(t *testing.T) {
	for _, name := range NetworkNames() {
		net, err := GetNetwork(name)
		require.NoError(t, err)
		assert.Equal(t, name, net.Name)
	}

	def, err := GetNetwork("")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), def.ChainID)

	_, err = GetNetwork("solana")
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}
