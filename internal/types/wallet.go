package types

type WalletStatus string

const (
	WalletStatusActive     WalletStatus = "ACTIVE"
	WalletStatusTerminated WalletStatus = "TERMINATED"
)

type TransactionType string

const (
	TransactionTypeInbound  TransactionType = "INBOUND"
	TransactionTypeOutbound TransactionType = "OUTBOUND"
)

type TransactionStatus string

const (
	TransactionStatusGranted   TransactionStatus = "GRANTED"
	TransactionStatusPurchased TransactionStatus = "PURCHASED"
	TransactionStatusVoided    TransactionStatus = "VOIDED"
	TransactionStatusInvoiced  TransactionStatus = "INVOICED"
)
