package mgmtpkt

import "encoding/binary"

// CurrentSettings is the 32-bit controller settings bitset. Unknown
// bits are truncated on read and preserved on write: decode(encode(x))
// == x for any uint32 value, including bits this module does not name.
type CurrentSettings uint32

const (
	SettingPowered CurrentSettings = 1 << iota
	SettingConnectable
	SettingFastConnectable
	SettingDiscoverable
	SettingBondable
	SettingLinkSecurity
	SettingSecureSimplePairing
	SettingBasicRateEnhancedDataRate
	SettingHighSpeed
	SettingLowEnergy
	SettingAdvertising
	SettingSecureConnections
	SettingDebugKeys
	SettingPrivacy
	SettingConfiguration
	SettingStaticAddress
)

func (s CurrentSettings) Has(bit CurrentSettings) bool { return s&bit != 0 }
func (s CurrentSettings) Set(bit CurrentSettings) CurrentSettings {
	return s | bit
}
func (s CurrentSettings) Clear(bit CurrentSettings) CurrentSettings {
	return s &^ bit
}

// EncodeSettings serialises s to 4 little-endian bytes.
func EncodeSettings(s CurrentSettings) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(s))
	return b
}

// DecodeSettings reads 4 little-endian bytes.
func DecodeSettings(b []byte) (CurrentSettings, error) {
	if len(b) < 4 {
		return 0, ErrInsufficientLength
	}
	return CurrentSettings(binary.LittleEndian.Uint32(b)), nil
}

// AdvertisingFlags mirrors the bit layout of the Add Advertising
// command's flags parameter.
type AdvertisingFlags uint32

const (
	FlagSwitchIntoConnectableMode AdvertisingFlags = 1 << iota
	FlagAdvertiseAsDiscoverable
	FlagAdvertiseAsLimitedDiscoverable
	FlagAddFlagsFieldToAdvData
	FlagAdvertiseTxPower
	FlagAddAppearanceFieldToScanResp
	FlagAddLocalNameInScanResp
	FlagSecondaryChannelLE1M
	FlagSecondaryChannelLE2M
	FlagSecondaryChannelLECoded
)

func (f AdvertisingFlags) Has(bit AdvertisingFlags) bool { return f&bit != 0 }

// EncodeAdvertisingFlags serialises f to 4 little-endian bytes.
func EncodeAdvertisingFlags(f AdvertisingFlags) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(f))
	return b
}

// DecodeAdvertisingFlags reads 4 little-endian bytes.
func DecodeAdvertisingFlags(b []byte) (AdvertisingFlags, error) {
	if len(b) < 4 {
		return 0, ErrInsufficientLength
	}
	return AdvertisingFlags(binary.LittleEndian.Uint32(b)), nil
}
