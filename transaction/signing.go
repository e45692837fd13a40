package transaction

import (
	"bytes"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
)

// signingDomainTag domain-separates the transaction hash (Hash) from every
// other DomainHash use in the core (blocks, committees), per the §6.3
// blake3(tag ‖ fields...) pattern.
const signingDomainTag = "tos.transaction.sign"

// multisigDomainTag domain-separates the hash a multisig participant signs
// from the primary source signature's pre-image, per spec §6.2: "Multisig
// participants sign the canonical serialization with the multisig block
// also zeroed, hashed once, then that hash is signed."
const multisigDomainTag = "tos.transaction.multisig"

// SigningBytes returns the canonical serialization of tx with its signature
// field replaced by zeros and its multisig block included, per spec §6.2.
// This is the byte string the primary source signature covers directly.
// Multisig participants sign MultisigSigningHash instead, whose pre-image
// also zeroes the multisig block.
func SigningBytes(tx *Transaction) ([]byte, error) {
	return encodeForSigning(tx, true)
}

// MultisigSigningHash returns the hash that each multisig participant signs:
// the domain-separated hash of tx's canonical serialization with both the
// signature and multisig block zeroed.
func MultisigSigningHash(tx *Transaction) (primitives.Hash, error) {
	b, err := encodeForSigning(tx, false)
	if err != nil {
		return primitives.Hash{}, err
	}
	return primitives.DomainHash(multisigDomainTag, b), nil
}

func encodeForSigning(tx *Transaction, includeMultisig bool) ([]byte, error) {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)

	w.WriteUint8(uint8(tx.Version))
	w.WriteBytes(tx.Source.Bytes())
	w.WriteUint64(tx.Nonce)
	w.WriteBytes(tx.ReferenceHash.Bytes())
	w.WriteUint64(tx.ReferenceTopoheight)
	w.WriteUint64(tx.Fee)
	w.WriteUint8(uint8(tx.FeeType))
	writeTransactionData(w, &tx.Data)

	if tx.Version == VersionV2 {
		serializer.WriteVec(w, tx.AccountKeys, writeAccountMeta)
	}

	// Signature is always zeroed in the signing pre-image.
	w.WriteBytes(make([]byte, primitives.SignatureSize))

	if includeMultisig {
		serializer.WriteVec(w, tx.Multisig, writeMultisigSignature)
	} else {
		w.WriteVarInt(0)
	}

	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTransactionData(w *serializer.Writer, d *TransactionData) {
	w.WriteUint8(uint8(d.Kind))
	switch d.Kind {
	case KindTransfers:
		serializer.WriteVec(w, d.Transfers, writeTransfer)
	case KindBurn:
		w.WriteBytes(d.Burn.Asset.Bytes())
		w.WriteUint64(d.Burn.Amount)
	case KindMultiSig:
		serializer.WriteVec(w, d.MultiSig.Participants, func(w *serializer.Writer, p primitives.PublicKey) {
			w.WriteBytes(p.Bytes())
		})
		w.WriteUint8(d.MultiSig.Threshold)
	case KindFreezeTos:
		w.WriteUint64(d.FreezeTos.Amount)
		w.WriteUint64(d.FreezeTos.Duration)
	case KindUnfreezeTos:
		w.WriteUint64(d.UnfreezeTos.Amount)
	case KindInvokeContract:
		writeInvoke(w, *d.Invoke)
	case KindDeployContract:
		w.WriteVarInt(uint64(len(d.Deploy.ModuleBytes)))
		w.WriteBytes(d.Deploy.ModuleBytes)
		serializer.WriteOption(w, d.Deploy.Invoke, writeInvoke)
	case KindAIMining:
		w.WriteVarInt(uint64(len(d.AIMiningData)))
		w.WriteBytes(d.AIMiningData)
	}
}

func writeTransfer(w *serializer.Writer, t Transfer) {
	w.WriteBytes(t.Destination.Bytes())
	w.WriteBytes(t.Asset.Bytes())
	w.WriteUint64(t.Amount)
	w.WriteVarInt(uint64(len(t.ExtraData)))
	w.WriteBytes(t.ExtraData)
}

func writeInvoke(w *serializer.Writer, inv InvokeContractData) {
	w.WriteBytes(inv.Contract.Bytes())
	w.WriteUint32(inv.ChunkID)
	w.WriteVarInt(uint64(len(inv.Parameters)))
	w.WriteBytes(inv.Parameters)
	serializer.WriteVec(w, inv.Deposits, func(w *serializer.Writer, d Deposit) {
		w.WriteBytes(d.Asset.Bytes())
		w.WriteUint64(d.Amount)
	})
	w.WriteUint64(inv.MaxGas)
}

func writeAccountMeta(w *serializer.Writer, m AccountMeta) {
	w.WriteBytes(m.Account.Bytes())
	w.WriteBytes(m.Asset.Bytes())
	w.WriteBool(m.IsSigner)
	w.WriteBool(m.IsWritable)
}

func writeMultisigSignature(w *serializer.Writer, s MultisigSignature) {
	w.WriteUint8(s.ParticipantIndex)
	w.WriteBytes(s.Signature.Bytes())
}

// Hash returns tx's wire hash: the domain-separated hash of its canonical
// serialization (signature and multisig block included, as actually signed
// and broadcast), used as its identifier once fully signed.
func Hash(tx *Transaction) (primitives.Hash, error) {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)

	w.WriteUint8(uint8(tx.Version))
	w.WriteBytes(tx.Source.Bytes())
	w.WriteUint64(tx.Nonce)
	w.WriteBytes(tx.ReferenceHash.Bytes())
	w.WriteUint64(tx.ReferenceTopoheight)
	w.WriteUint64(tx.Fee)
	w.WriteUint8(uint8(tx.FeeType))
	writeTransactionData(w, &tx.Data)
	if tx.Version == VersionV2 {
		serializer.WriteVec(w, tx.AccountKeys, writeAccountMeta)
	}
	w.WriteBytes(tx.Signature.Bytes())
	serializer.WriteVec(w, tx.Multisig, writeMultisigSignature)

	if err := w.Err(); err != nil {
		return primitives.Hash{}, err
	}
	return primitives.DomainHash(signingDomainTag, buf.Bytes()), nil
}
