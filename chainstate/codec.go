package chainstate

import (
	"bytes"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
	"github.com/tos-network/tos-core/transaction"
)

// The encodings below are the on-disk wire format for each versioned column's
// value. They reuse the same serializer.Writer/Reader codec as the wire
// protocol (spec §6.1) rather than a separate ad-hoc binary format, per the
// teacher's convention of a single deterministic codec throughout
// infrastructure/database and wire.

func encodeUint64(v uint64) []byte {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	w.WriteUint64(v)
	return buf.Bytes()
}

func decodeUint64(b []byte) (uint64, error) {
	r := serializer.NewReader(bytes.NewReader(b))
	v := r.ReadUint64()
	return v, r.Err()
}

func encodeEnergyResource(er *transaction.EnergyResource) []byte {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	w.WriteUint64(er.FrozenTos)
	w.WriteUint64(er.FreeQuotaUsed)
	w.WriteInt64(er.LastQuotaRecoveryMs)
	w.WriteUint64(er.FreezeExpiryTopoheight)
	return buf.Bytes()
}

func decodeEnergyResource(b []byte) (*transaction.EnergyResource, error) {
	r := serializer.NewReader(bytes.NewReader(b))
	er := &transaction.EnergyResource{
		FrozenTos:              r.ReadUint64(),
		FreeQuotaUsed:          r.ReadUint64(),
		LastQuotaRecoveryMs:    r.ReadInt64(),
		FreezeExpiryTopoheight: r.ReadUint64(),
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return er, nil
}

func encodeContractModule(m *transaction.ContractModule) []byte {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	w.WriteVarInt(uint64(len(m.Bytes)))
	w.WriteBytes(m.Bytes)
	return buf.Bytes()
}

func decodeContractModule(b []byte) (*transaction.ContractModule, error) {
	r := serializer.NewReader(bytes.NewReader(b))
	n := r.ReadVarInt()
	body := r.ReadBytes(int(n))
	if r.Err() != nil {
		return nil, r.Err()
	}
	return &transaction.ContractModule{Bytes: body}, nil
}

func readStoredPublicKey(r *serializer.Reader) primitives.PublicKey {
	return primitives.PublicKey(serializer.ReadPublicKeyBytes(r))
}

func encodeMultisigConfig(cfg *transaction.MultiSigConfig) []byte {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	serializer.WriteVec(w, cfg.Participants, serializer.WritePublicKey)
	w.WriteUint8(cfg.Threshold)
	return buf.Bytes()
}

func decodeMultisigConfig(b []byte) (*transaction.MultiSigConfig, error) {
	r := serializer.NewReader(bytes.NewReader(b))
	participants := serializer.ReadVec(r, readStoredPublicKey)
	threshold := r.ReadUint8()
	if r.Err() != nil {
		return nil, r.Err()
	}
	return &transaction.MultiSigConfig{Participants: participants, Threshold: threshold}, nil
}
