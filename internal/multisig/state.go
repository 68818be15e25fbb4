package multisig

import (
	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// transitions es la tabla de la máquina de estados de una transacción.
var transitions = map[repository.TxStatus][]repository.TxStatus{
	repository.TxCreated:           {repository.TxPendingSignatures, repository.TxFailed},
	repository.TxPendingSignatures: {repository.TxReady, repository.TxFailed},
	repository.TxReady:             {repository.TxBroadcasting},
	repository.TxBroadcasting:      {repository.TxConfirmed, repository.TxFailed},
}

func canTransition(from, to repository.TxStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition registra un cambio de estado sobre rec. Se usa sólo dentro de
// TransactionRepository.Update.
type transition struct {
	From repository.TxStatus
	To   repository.TxStatus
}

func moveTo(rec *repository.TxRecord, to repository.TxStatus, log *[]transition) error {
	from := rec.Tx.Status
	if !canTransition(from, to) {
		return types.Ef(types.KindInvalidTransactionState, "transaction cannot move from %s to %s", from, to)
	}
	rec.Tx.Status = to
	*log = append(*log, transition{From: from, To: to})
	return nil
}

func fail(rec *repository.TxRecord, reason, detail string, log *[]transition) error {
	if err := moveTo(rec, repository.TxFailed, log); err != nil {
		return err
	}
	rec.Tx.FailureReason = reason
	rec.Tx.FailureDetail = detail
	return nil
}

// tally cuenta firmantes distintos con voto Signed y Pending. El peso del
// firmante es informativo; el threshold M es de aprobaciones distintas.
func tally(rec *repository.TxRecord) (signed, pending int) {
	for _, v := range rec.Signatures {
		switch v.Status {
		case repository.VoteSigned:
			signed++
		case repository.VotePending:
			pending++
		}
	}
	return signed, pending
}

// unreachable indica si los votos pendientes ya no alcanzan para el threshold.
func unreachable(rec *repository.TxRecord) bool {
	signed, pending := tally(rec)
	return pending < rec.Tx.RequiredSignatures-signed
}
