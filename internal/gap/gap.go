// Package gap drives the controller through the MGMT setup sequence
// that brings up a bondable, privacy-enabled LE peripheral, owns
// advertising instance 1's lifecycle, and answers the pairing events
// the kernel raises during bonding.
package gap

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/btknmle/btknmle/internal/advpkt"
	"github.com/btknmle/btknmle/internal/bleuuid"
	"github.com/btknmle/btknmle/internal/btaddr"
	"github.com/btknmle/btknmle/internal/keystore"
	"github.com/btknmle/btknmle/internal/mgmt"
	"github.com/btknmle/btknmle/internal/mgmtpkt"
)

// AdvertisingInstance is the single advertising set this daemon ever
// configures.
const AdvertisingInstance uint8 = 1

// HIDAppearance is the GAP appearance value advertised for a generic
// HID peripheral.
const HIDAppearance uint16 = 0x03C0

// LocalName is used for both the complete and short local name.
const LocalName = "btknmle"

// advertisingTimeoutSeconds bounds how long a single advertising burst
// runs before the kernel removes it on its own. HandleEvent only marks
// advertising inactive on the resulting AdvertisingRemoved event;
// nothing restarts it until the supervisor's accept loop starts it
// again after a served connection ends.
const advertisingTimeoutSeconds = 60

// reportedHIDService is the 16-bit UUID the scan response lists so a
// central can filter for this peripheral without a full GATT browse.
var reportedHIDService = bleuuid.UUID16(0x1812)

// Orchestrator owns one controller's MGMT-level setup, advertising
// lifecycle, and pairing policy.
type Orchestrator struct {
	client *mgmt.Client
	store  *keystore.Store
	index  mgmtpkt.ControllerIndex
	log    *log.Entry

	mu          sync.Mutex
	advertising bool
	passkey     passkeyBuffer
}

// passkeyBuffer accumulates digits for one outstanding
// UserPasskeyRequest. A zero value means no request is pending.
type passkeyBuffer struct {
	pending     bool
	address     btaddr.Address
	addressType btaddr.AddressType
	digits      []byte
}

// New builds an Orchestrator for the given controller.
func New(client *mgmt.Client, store *keystore.Store, index mgmtpkt.ControllerIndex, logger *log.Entry) *Orchestrator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Orchestrator{client: client, store: store, index: index, log: logger}
}

// Setup runs the controller bring-up sequence: it disables the
// controller if already powered (so the settings below take effect
// cleanly), switches it to LE-only, bondable, privacy-enabled
// operation with this daemon's identity, loads any bonded keys from
// the store, and powers the controller back on.
func (o *Orchestrator) Setup(ctx context.Context) error {
	ci, err := o.readControllerInformation(ctx)
	if err != nil {
		return fmt.Errorf("gap: reading controller information: %w", err)
	}

	if ci.CurrentSettings.Has(mgmtpkt.SettingPowered) {
		if err := o.call(ctx, mgmtpkt.SetPowered{Powered: false}); err != nil {
			return fmt.Errorf("gap: powering off for reconfiguration: %w", err)
		}
	}
	if !ci.CurrentSettings.Has(mgmtpkt.SettingLowEnergy) {
		if err := o.call(ctx, mgmtpkt.SetLowEnergy{Enabled: true}); err != nil {
			return fmt.Errorf("gap: SetLowEnergy: %w", err)
		}
	}
	if ci.CurrentSettings.Has(mgmtpkt.SettingBasicRateEnhancedDataRate) {
		if err := o.call(ctx, mgmtpkt.SetBrEdr{Enabled: false}); err != nil {
			return fmt.Errorf("gap: SetBrEdr: %w", err)
		}
	}
	if !ci.CurrentSettings.Has(mgmtpkt.SettingSecureConnections) {
		if err := o.call(ctx, mgmtpkt.SetSecureConnections{Mode: mgmtpkt.SecureConnectionsEnabled}); err != nil {
			return fmt.Errorf("gap: SetSecureConnections: %w", err)
		}
	}
	if err := o.call(ctx, mgmtpkt.SetIOCapability{Capability: mgmtpkt.IOCapabilityKeyboardOnly}); err != nil {
		return fmt.Errorf("gap: SetIOCapability: %w", err)
	}

	localKey, err := o.store.KeyForResolvablePrivateAddress()
	if err != nil {
		return fmt.Errorf("gap: loading local resolvable-address key: %w", err)
	}
	if err := o.call(ctx, mgmtpkt.SetPrivacy{Privacy: true, IRK: localKey}); err != nil {
		return fmt.Errorf("gap: SetPrivacy: %w", err)
	}

	if err := o.call(ctx, mgmtpkt.SetAppearance{Appearance: HIDAppearance}); err != nil {
		return fmt.Errorf("gap: SetAppearance: %w", err)
	}

	name, err := mgmtpkt.NewName(LocalName)
	if err != nil {
		return fmt.Errorf("gap: local name: %w", err)
	}
	shortName, err := mgmtpkt.NewShortName(LocalName)
	if err != nil {
		return fmt.Errorf("gap: local short name: %w", err)
	}
	if err := o.call(ctx, mgmtpkt.SetLocalName{Name: name, ShortName: shortName}); err != nil {
		return fmt.Errorf("gap: SetLocalName: %w", err)
	}

	if !ci.CurrentSettings.Has(mgmtpkt.SettingBondable) {
		if err := o.call(ctx, mgmtpkt.SetBondable{Bondable: true}); err != nil {
			return fmt.Errorf("gap: SetBondable: %w", err)
		}
	}
	if ci.CurrentSettings.Has(mgmtpkt.SettingConnectable) {
		if err := o.call(ctx, mgmtpkt.SetConnectable{Connectable: false}); err != nil {
			return fmt.Errorf("gap: SetConnectable: %w", err)
		}
	}

	irks, err := o.store.IterIRKs()
	if err != nil {
		return fmt.Errorf("gap: reading stored IRKs: %w", err)
	}
	if err := o.call(ctx, mgmtpkt.LoadIdentityResolvingKeys{Keys: irks}); err != nil {
		return fmt.Errorf("gap: LoadIdentityResolvingKeys: %w", err)
	}

	ltks, err := o.store.IterLTKs()
	if err != nil {
		return fmt.Errorf("gap: reading stored LTKs: %w", err)
	}
	if err := o.call(ctx, mgmtpkt.LoadLongTermKeys{Keys: ltks}); err != nil {
		return fmt.Errorf("gap: LoadLongTermKeys: %w", err)
	}

	if err := o.call(ctx, mgmtpkt.SetDefaultSystemConfiguration{
		LEAdvertisementMinInterval: 224,
		LEAdvertisementMaxInterval: 338,
	}); err != nil {
		return fmt.Errorf("gap: SetDefaultSystemConfiguration: %w", err)
	}

	if err := o.call(ctx, mgmtpkt.SetPowered{Powered: true}); err != nil {
		return fmt.Errorf("gap: powering on: %w", err)
	}
	return nil
}

func (o *Orchestrator) readControllerInformation(ctx context.Context) (mgmtpkt.ControllerInformation, error) {
	b, err := o.client.Call(ctx, o.index, mgmtpkt.ReadControllerInformation{})
	if err != nil {
		return mgmtpkt.ControllerInformation{}, err
	}
	return mgmtpkt.DecodeControllerInformation(b)
}

func (o *Orchestrator) call(ctx context.Context, c mgmtpkt.Command) error {
	_, err := o.client.Call(ctx, o.index, c)
	return err
}

// StartAdvertising (re)configures advertising instance 1: connectable,
// limited-discoverable, identifying itself in the scan response by the
// HID service UUID list encoded here, plus the local name and
// appearance that the kernel appends per the flags below (which also
// add the flags field to AdvData, so AdvData itself carries nothing).
func (o *Orchestrator) StartAdvertising(ctx context.Context) error {
	scanRsp, err := advpkt.Encode([]advpkt.Item{advpkt.CompleteListUUID16(reportedHIDService)})
	if err != nil {
		return fmt.Errorf("gap: encoding scan response: %w", err)
	}

	flags := mgmtpkt.FlagSwitchIntoConnectableMode |
		mgmtpkt.FlagAdvertiseAsLimitedDiscoverable |
		mgmtpkt.FlagAddFlagsFieldToAdvData |
		mgmtpkt.FlagAddAppearanceFieldToScanResp |
		mgmtpkt.FlagAddLocalNameInScanResp

	if err := o.call(ctx, mgmtpkt.AddAdvertising{
		Instance: AdvertisingInstance,
		Flags:    flags,
		Duration: 0,
		Timeout:  advertisingTimeoutSeconds,
		ScanRsp:  scanRsp,
	}); err != nil {
		return fmt.Errorf("gap: AddAdvertising: %w", err)
	}

	o.mu.Lock()
	o.advertising = true
	o.mu.Unlock()
	return nil
}

// StopAdvertising removes advertising instance 1 if it is active.
func (o *Orchestrator) StopAdvertising(ctx context.Context) error {
	o.mu.Lock()
	active := o.advertising
	o.mu.Unlock()
	if !active {
		return nil
	}
	if err := o.call(ctx, mgmtpkt.RemoveAdvertising{Instance: AdvertisingInstance}); err != nil {
		return fmt.Errorf("gap: RemoveAdvertising: %w", err)
	}
	o.mu.Lock()
	o.advertising = false
	o.mu.Unlock()
	return nil
}

// Advertising reports whether instance 1 is believed active.
func (o *Orchestrator) Advertising() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advertising
}

// HasBondedAuthenticatedKey reports whether addr already holds an
// authenticated LTK, the check the supervisor makes right after
// accepting a connection to decide whether to serve reports on it or
// drop it.
func (o *Orchestrator) HasBondedAuthenticatedKey(addr btaddr.Address) (bool, error) {
	return o.store.HasAuthenticatedLTK(addr)
}

// HandleEvent applies this daemon's pairing and key-persistence policy
// to one asynchronous MGMT event. Events this orchestrator has no
// opinion about are ignored.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev mgmt.Event) error {
	if ev.Index != o.index && ev.Index != mgmtpkt.NonController {
		return nil
	}
	switch ev.Code {
	case mgmtpkt.EvtNewLongTermKey:
		e, err := mgmtpkt.DecodeNewLongTermKey(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding NewLongTermKey: %w", err)
		}
		if !e.StoreHint {
			return nil
		}
		return o.store.AddLTK(e.Key)

	case mgmtpkt.EvtNewIdentityResolvingKey:
		e, err := mgmtpkt.DecodeNewIdentityResolvingKey(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding NewIdentityResolvingKey: %w", err)
		}
		if !e.StoreHint {
			return nil
		}
		return o.store.AddIRK(e.Key)

	case mgmtpkt.EvtUserConfirmationRequest:
		e, err := mgmtpkt.DecodeUserConfirmationRequest(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding UserConfirmationRequest: %w", err)
		}
		o.log.WithField("peer", e.Address).Info("gap: rejecting numeric comparison, this peripheral only supports passkey entry")
		return o.call(ctx, mgmtpkt.UserConfirmationNegativeReply{Address: e.Address, AddressType: e.AddressType})

	case mgmtpkt.EvtUserPasskeyRequest:
		e, err := mgmtpkt.DecodeUserPasskeyRequest(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding UserPasskeyRequest: %w", err)
		}
		o.beginPasskey(e.Address, e.AddressType)
		return nil

	case mgmtpkt.EvtAdvertisingRemoved:
		e, err := mgmtpkt.DecodeAdvertisingRemoved(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding AdvertisingRemoved: %w", err)
		}
		if e.Instance == AdvertisingInstance {
			o.mu.Lock()
			o.advertising = false
			o.mu.Unlock()
		}
		return nil

	case mgmtpkt.EvtDeviceConnected:
		e, err := mgmtpkt.DecodeDeviceConnected(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding DeviceConnected: %w", err)
		}
		o.log.WithField("peer", e.Address).Info("gap: device connected")
		return nil

	case mgmtpkt.EvtDeviceDisconnected:
		e, err := mgmtpkt.DecodeDeviceDisconnected(ev.Body)
		if err != nil {
			return fmt.Errorf("gap: decoding DeviceDisconnected: %w", err)
		}
		o.log.WithField("peer", e.Address).Info("gap: device disconnected")
		return nil

	default:
		return nil
	}
}

func (o *Orchestrator) beginPasskey(addr btaddr.Address, at btaddr.AddressType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passkey = passkeyBuffer{pending: true, address: addr, addressType: at}
	o.log.WithField("peer", addr).Info("gap: awaiting passkey entry")
}

// PasskeyPending reports whether a UserPasskeyRequest is awaiting
// digits.
func (o *Orchestrator) PasskeyPending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.passkey.pending
}

// PasskeyDigit appends one decimal digit (0-9) to the buffer for the
// outstanding passkey request. Digits past the sixth are ignored; the
// buffer is only consumed by PasskeyEnter.
func (o *Orchestrator) PasskeyDigit(digit uint8) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.passkey.pending || digit > 9 || len(o.passkey.digits) >= 6 {
		return
	}
	o.passkey.digits = append(o.passkey.digits, digit)
}

// PasskeyEnter submits the buffered passkey if exactly six digits have
// been entered, replying UserPasskeyReply with the decimal value they
// spell out. A short buffer is left untouched so the operator can keep
// typing; Enter has no effect when no request is pending.
func (o *Orchestrator) PasskeyEnter(ctx context.Context) error {
	o.mu.Lock()
	if !o.passkey.pending || len(o.passkey.digits) != 6 {
		o.mu.Unlock()
		return nil
	}
	addr, at, digits := o.passkey.address, o.passkey.addressType, o.passkey.digits
	o.passkey = passkeyBuffer{}
	o.mu.Unlock()

	var passkey uint32
	for _, d := range digits {
		passkey = passkey*10 + uint32(d)
	}
	return o.call(ctx, mgmtpkt.UserPasskeyReply{Address: addr, AddressType: at, Passkey: passkey})
}
