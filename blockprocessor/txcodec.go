package blockprocessor

import (
	"bytes"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
	"github.com/tos-network/tos-core/transaction"
)

// EncodeTransaction serializes tx in full, signature and multisig block
// included, for storage.ColumnTransactions. Grounded on the same
// writeTransactionData/writeTransfer/writeInvoke/writeAccountMeta layout
// transaction.Hash already hashes over, since that is by construction the
// canonical fully-signed encoding; transaction/signing.go itself only ever
// needs to write that layout; the read side is new, for this package's
// storage round-trip.
func EncodeTransaction(tx *transaction.Transaction) []byte {
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
	if tx.Version == transaction.VersionV2 {
		serializer.WriteVec(w, tx.AccountKeys, writeAccountMeta)
	}
	w.WriteBytes(tx.Signature.Bytes())
	serializer.WriteVec(w, tx.Multisig, writeMultisigSignature)

	return buf.Bytes()
}

// DecodeTransaction is the inverse of EncodeTransaction.
func DecodeTransaction(b []byte) (*transaction.Transaction, error) {
	r := serializer.NewReader(bytes.NewReader(b))
	tx := &transaction.Transaction{}

	tx.Version = transaction.Version(r.ReadUint8())
	tx.Source = readPublicKey(r)
	tx.Nonce = r.ReadUint64()
	tx.ReferenceHash = readHash(r)
	tx.ReferenceTopoheight = r.ReadUint64()
	tx.Fee = r.ReadUint64()
	tx.FeeType = transaction.FeeType(r.ReadUint8())
	tx.Data = readTransactionData(r)
	if tx.Version == transaction.VersionV2 {
		tx.AccountKeys = serializer.ReadVec(r, readAccountMeta)
	}
	tx.Signature = readSignature(r)
	tx.Multisig = serializer.ReadVec(r, readMultisigSignature)

	if r.Err() != nil {
		return nil, r.Err()
	}
	return tx, nil
}

func writeTransactionData(w *serializer.Writer, d *transaction.TransactionData) {
	w.WriteUint8(uint8(d.Kind))
	switch d.Kind {
	case transaction.KindTransfers:
		serializer.WriteVec(w, d.Transfers, writeTransfer)
	case transaction.KindBurn:
		w.WriteBytes(d.Burn.Asset.Bytes())
		w.WriteUint64(d.Burn.Amount)
	case transaction.KindMultiSig:
		serializer.WriteVec(w, d.MultiSig.Participants, func(w *serializer.Writer, p primitives.PublicKey) {
			w.WriteBytes(p.Bytes())
		})
		w.WriteUint8(d.MultiSig.Threshold)
	case transaction.KindFreezeTos:
		w.WriteUint64(d.FreezeTos.Amount)
		w.WriteUint64(d.FreezeTos.Duration)
	case transaction.KindUnfreezeTos:
		w.WriteUint64(d.UnfreezeTos.Amount)
	case transaction.KindInvokeContract:
		writeInvoke(w, *d.Invoke)
	case transaction.KindDeployContract:
		w.WriteVarInt(uint64(len(d.Deploy.ModuleBytes)))
		w.WriteBytes(d.Deploy.ModuleBytes)
		serializer.WriteOption(w, d.Deploy.Invoke, writeInvoke)
	case transaction.KindAIMining:
		w.WriteVarInt(uint64(len(d.AIMiningData)))
		w.WriteBytes(d.AIMiningData)
	}
}

func readTransactionData(r *serializer.Reader) transaction.TransactionData {
	d := transaction.TransactionData{Kind: transaction.Kind(r.ReadUint8())}
	switch d.Kind {
	case transaction.KindTransfers:
		d.Transfers = serializer.ReadVec(r, readTransfer)
	case transaction.KindBurn:
		d.Burn = &transaction.BurnData{Asset: readHash(r), Amount: r.ReadUint64()}
	case transaction.KindMultiSig:
		participants := serializer.ReadVec(r, func(r *serializer.Reader) primitives.PublicKey { return readPublicKey(r) })
		d.MultiSig = &transaction.MultiSigConfig{Participants: participants, Threshold: r.ReadUint8()}
	case transaction.KindFreezeTos:
		d.FreezeTos = &transaction.FreezeTosData{Amount: r.ReadUint64(), Duration: r.ReadUint64()}
	case transaction.KindUnfreezeTos:
		d.UnfreezeTos = &transaction.UnfreezeTosData{Amount: r.ReadUint64()}
	case transaction.KindInvokeContract:
		inv := readInvoke(r)
		d.Invoke = &inv
	case transaction.KindDeployContract:
		n := r.ReadVarInt()
		d.Deploy = &transaction.DeployContractData{ModuleBytes: r.ReadBytes(int(n))}
		d.Deploy.Invoke = serializer.ReadOption(r, readInvoke)
	case transaction.KindAIMining:
		n := r.ReadVarInt()
		d.AIMiningData = r.ReadBytes(int(n))
	}
	return d
}

func writeTransfer(w *serializer.Writer, t transaction.Transfer) {
	w.WriteBytes(t.Destination.Bytes())
	w.WriteBytes(t.Asset.Bytes())
	w.WriteUint64(t.Amount)
	w.WriteVarInt(uint64(len(t.ExtraData)))
	w.WriteBytes(t.ExtraData)
}

func readTransfer(r *serializer.Reader) transaction.Transfer {
	dest := readPublicKey(r)
	asset := readHash(r)
	amount := r.ReadUint64()
	n := r.ReadVarInt()
	return transaction.Transfer{Destination: dest, Asset: asset, Amount: amount, ExtraData: r.ReadBytes(int(n))}
}

func writeInvoke(w *serializer.Writer, inv transaction.InvokeContractData) {
	w.WriteBytes(inv.Contract.Bytes())
	w.WriteUint32(inv.ChunkID)
	w.WriteVarInt(uint64(len(inv.Parameters)))
	w.WriteBytes(inv.Parameters)
	serializer.WriteVec(w, inv.Deposits, func(w *serializer.Writer, d transaction.Deposit) {
		w.WriteBytes(d.Asset.Bytes())
		w.WriteUint64(d.Amount)
	})
	w.WriteUint64(inv.MaxGas)
}

func readInvoke(r *serializer.Reader) transaction.InvokeContractData {
	contract := readHash(r)
	chunkID := r.ReadUint32()
	n := r.ReadVarInt()
	params := r.ReadBytes(int(n))
	deposits := serializer.ReadVec(r, func(r *serializer.Reader) transaction.Deposit {
		asset := readHash(r)
		return transaction.Deposit{Asset: asset, Amount: r.ReadUint64()}
	})
	maxGas := r.ReadUint64()
	return transaction.InvokeContractData{Contract: contract, ChunkID: chunkID, Parameters: params, Deposits: deposits, MaxGas: maxGas}
}

func writeAccountMeta(w *serializer.Writer, m transaction.AccountMeta) {
	w.WriteBytes(m.Account.Bytes())
	w.WriteBytes(m.Asset.Bytes())
	w.WriteBool(m.IsSigner)
	w.WriteBool(m.IsWritable)
}

func readAccountMeta(r *serializer.Reader) transaction.AccountMeta {
	account := readPublicKey(r)
	asset := readHash(r)
	return transaction.AccountMeta{Account: account, Asset: asset, IsSigner: r.ReadBool(), IsWritable: r.ReadBool()}
}

func writeMultisigSignature(w *serializer.Writer, s transaction.MultisigSignature) {
	w.WriteUint8(s.ParticipantIndex)
	w.WriteBytes(s.Signature.Bytes())
}

func readMultisigSignature(r *serializer.Reader) transaction.MultisigSignature {
	idx := r.ReadUint8()
	return transaction.MultisigSignature{ParticipantIndex: idx, Signature: readSignature(r)}
}

func readHash(r *serializer.Reader) primitives.Hash {
	var h primitives.Hash
	copy(h[:], r.ReadBytes(primitives.HashSize))
	return h
}

func readPublicKey(r *serializer.Reader) primitives.PublicKey {
	var p primitives.PublicKey
	copy(p[:], r.ReadBytes(primitives.PublicKeySize))
	return p
}

func readSignature(r *serializer.Reader) primitives.Signature {
	var s primitives.Signature
	copy(s[:], r.ReadBytes(primitives.SignatureSize))
	return s
}
