package discovery

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceTXTRoundTrip(t *testing.T) {
	txt := EncodeDeviceTXT(&DeviceInfo{Serial: "emulator-5554", State: "offline"})
	strs := TXTRecordsToStrings(txt)
	assert.Equal(t, []string{"serial=emulator-5554", "state=offline", "v=1"}, strs)

	info, err := DecodeDeviceTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", info.Serial)
	assert.Equal(t, "offline", info.State)
}

func TestEncodeDeviceTXTDefaultsState(t *testing.T) {
	txt := EncodeDeviceTXT(&DeviceInfo{Serial: "s"})
	assert.Equal(t, "device", txt[TXTKeyState])
}

func TestDecodeDeviceTXTRequiresSerial(t *testing.T) {
	_, err := DecodeDeviceTXT(TXTRecordMap{TXTKeyState: "device"})
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "b=x=y", "flag", ""})
	assert.Equal(t, TXTRecordMap{"a": "1", "b": "x=y", "flag": ""}, txt)
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "adb-emulator-5554", InstanceName("emulator-5554"))
	assert.Equal(t, "adb-192-168-1-20-5555", InstanceName("192.168.1.20:5555"))

	long := InstanceName(strings.Repeat("x", 100))
	assert.Len(t, long, MaxInstanceNameLen)
	assert.True(t, strings.HasPrefix(long, "adb-"))
}

func TestServiceFromEntry(t *testing.T) {
	svc := serviceFromEntry("adb-R58M", "pixel.local.", 37000,
		[]string{"serial=R58M", "state=device", "v=1"},
		[]net.IP{net.ParseIP("192.168.1.20"), net.ParseIP("fe80::1")})
	require.NotNil(t, svc)
	assert.Equal(t, "R58M", svc.Serial)
	assert.Equal(t, uint16(37000), svc.Port)
	assert.Equal(t, []string{"192.168.1.20", "fe80::1"}, svc.Addresses)
	assert.Equal(t, "192.168.1.20:37000", svc.Address())

	assert.Nil(t, serviceFromEntry("x", "h", 5555, []string{"state=device"}, nil), "no serial")
	assert.Nil(t, serviceFromEntry("x", "h", 0, []string{"serial=s"}, nil), "no port")
}

func TestServiceAddressFallsBackToHost(t *testing.T) {
	svc := &Service{Host: "pixel.local.", Port: 5555}
	assert.Equal(t, "pixel.local:5555", svc.Address())
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"})
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, addrs)

	addrs = removeAddresses(addrs, []net.IP{net.ParseIP("10.0.0.1")})
	assert.Equal(t, []string{"10.0.0.2"}, addrs)
}

func TestAdvertiserRejectsEmptySerial(t *testing.T) {
	a := NewMDNSAdvertiser(AdvertiserConfig{})
	assert.ErrorIs(t, a.Advertise(&DeviceInfo{}), ErrMissingRequired)
	assert.ErrorIs(t, a.Stop("nope"), ErrNotFound)
	assert.ErrorIs(t, a.Update(&DeviceInfo{Serial: "nope"}), ErrNotFound)
	assert.Equal(t, 0, a.Advertised())
	a.StopAll()
}
