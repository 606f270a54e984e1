package mgmtpkt

// Command codes. Values match the Linux kernel MGMT API where spec.md
// does not pin a specific value; the five spec.md names explicitly
// constrains (SetPowered, LoadLongTermKeys, AddAdvertising,
// UserPasskeyReply, ReadAdvertisingFeatures) use spec.md's literal codes.
const (
	CmdReadControllerInformation       uint16 = 0x0004
	CmdSetPowered                      uint16 = 0x0005
	CmdSetConnectable                  uint16 = 0x0007
	CmdSetBondable                     uint16 = 0x0009
	CmdSetLowEnergy                    uint16 = 0x000D
	CmdSetLocalName                    uint16 = 0x000F
	CmdLoadLongTermKeys                uint16 = 0x0013
	CmdSetIOCapability                 uint16 = 0x0018
	CmdUserConfirmationReply           uint16 = 0x001C
	CmdUserConfirmationNegativeReply   uint16 = 0x001D
	CmdUserPasskeyReply                uint16 = 0x001E
	CmdUserPasskeyNegativeReply        uint16 = 0x001F
	CmdSetBrEdr                        uint16 = 0x002A
	CmdSetSecureConnections            uint16 = 0x002D
	CmdSetPrivacy                      uint16 = 0x002F
	CmdLoadIdentityResolvingKeys       uint16 = 0x0030
	CmdReadAdvertisingFeatures         uint16 = 0x003C
	CmdAddAdvertising                  uint16 = 0x003E
	CmdRemoveAdvertising               uint16 = 0x003F
	CmdSetAppearance                   uint16 = 0x0043
	CmdSetDefaultSystemConfiguration   uint16 = 0x004C
)

// Event codes.
const (
	EvtCommandComplete           uint16 = 0x0001
	EvtCommandStatus             uint16 = 0x0002
	EvtNewSettings               uint16 = 0x0006
	EvtNewLongTermKey            uint16 = 0x000A
	EvtDeviceConnected           uint16 = 0x000B
	EvtDeviceDisconnected        uint16 = 0x000C
	EvtUserConfirmationRequest   uint16 = 0x000F
	EvtUserPasskeyRequest        uint16 = 0x0010
	EvtNewIdentityResolvingKey   uint16 = 0x0018
	EvtAdvertisingRemoved        uint16 = 0x0024
)

// commandNames supports debug logging without a giant switch at call sites.
var commandNames = map[uint16]string{
	CmdReadControllerInformation:     "ReadControllerInformation",
	CmdSetPowered:                    "SetPowered",
	CmdSetConnectable:                "SetConnectable",
	CmdSetBondable:                   "SetBondable",
	CmdSetLowEnergy:                  "SetLowEnergy",
	CmdSetLocalName:                  "SetLocalName",
	CmdLoadLongTermKeys:              "LoadLongTermKeys",
	CmdSetIOCapability:               "SetIOCapability",
	CmdUserConfirmationReply:         "UserConfirmationReply",
	CmdUserConfirmationNegativeReply: "UserConfirmationNegativeReply",
	CmdUserPasskeyReply:              "UserPasskeyReply",
	CmdUserPasskeyNegativeReply:      "UserPasskeyNegativeReply",
	CmdSetBrEdr:                      "SetBrEdr",
	CmdSetSecureConnections:          "SetSecureConnections",
	CmdSetPrivacy:                    "SetPrivacy",
	CmdLoadIdentityResolvingKeys:     "LoadIdentityResolvingKeys",
	CmdReadAdvertisingFeatures:       "ReadAdvertisingFeatures",
	CmdAddAdvertising:                "AddAdvertising",
	CmdRemoveAdvertising:             "RemoveAdvertising",
	CmdSetAppearance:                 "SetAppearance",
	CmdSetDefaultSystemConfiguration: "SetDefaultSystemConfiguration",
}

// CommandName returns a human-readable name for a command code, or
// "Unknown" for codes this module does not define.
func CommandName(code uint16) string {
	if n, ok := commandNames[code]; ok {
		return n
	}
	return "Unknown"
}
