package ledger

import "time"

type applyRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Type           string `json:"type" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"required"`
	ReferenceType  string `json:"reference_type"`
	ReferenceID    string `json:"reference_id"`
	Actor          string `json:"actor"`
}

type confirmWithdrawalRequest struct {
	IdempotencyKey string `json:"idempotency_key" validate:"required"`
	ReferenceType  string `json:"reference_type"`
	ReferenceID    string `json:"reference_id"`
	Actor          string `json:"actor"`
}

type applyResponse struct {
	WalletID      string `json:"wallet_id"`
	TransactionID string `json:"transaction_id"`
	BalanceAfter  int64  `json:"balance_after"`
	Replayed      bool   `json:"replayed"`
}

type transactionResponse struct {
	ID             string    `json:"id"`
	WalletID       string    `json:"wallet_id"`
	Type           string    `json:"type"`
	Amount         int64     `json:"amount"`
	BalanceBefore  int64     `json:"balance_before"`
	BalanceAfter   int64     `json:"balance_after"`
	ReferenceType  string    `json:"reference_type,omitempty"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toApplyResponse(res Result) applyResponse {
	return applyResponse{
		WalletID:      res.WalletID,
		TransactionID: res.TransactionID,
		BalanceAfter:  res.BalanceAfter,
		Replayed:      res.Replayed,
	}
}

func toTransactionResponses(txs []Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:             tx.ID,
			WalletID:       tx.WalletID,
			Type:           string(tx.Type),
			Amount:         tx.Amount,
			BalanceBefore:  tx.BalanceBefore,
			BalanceAfter:   tx.BalanceAfter,
			ReferenceType:  tx.ReferenceType,
			ReferenceID:    tx.ReferenceID,
			IdempotencyKey: tx.IdempotencyKey,
			CreatedBy:      tx.CreatedBy,
			CreatedAt:      tx.CreatedAt,
		})
	}
	return out
}
