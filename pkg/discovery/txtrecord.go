package discovery

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeDeviceTXT creates the TXT records for a device.
func EncodeDeviceTXT(info *DeviceInfo) TXTRecordMap {
	state := info.State
	if state == "" {
		state = "device"
	}
	return TXTRecordMap{
		TXTKeySerial:  info.Serial,
		TXTKeyState:   state,
		TXTKeyVersion: TXTVersion,
	}
}

// DecodeDeviceTXT parses device TXT records. Only serial is required.
func DecodeDeviceTXT(txt TXTRecordMap) (*DeviceInfo, error) {
	serial, ok := txt[TXTKeySerial]
	if !ok || serial == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}
	info := &DeviceInfo{Serial: serial, State: txt[TXTKeyState]}
	if info.State == "" {
		info.State = "device"
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
// A bare key maps to the empty string.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// InstanceName derives the instance name for serial, replacing characters
// that are awkward in DNS labels and capping it at MaxInstanceNameLen bytes.
func InstanceName(serial string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '.', ':', '/', '\\':
			return '-'
		}
		return r
	}, serial)
	name = "adb-" + name
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

func joinHostPort(host string, port uint16) string {
	return net.JoinHostPort(strings.TrimSuffix(host, "."), strconv.Itoa(int(port)))
}
