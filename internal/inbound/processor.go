// Package inbound processes bank paybill payment notifications: it verifies
// the notification is authentic, resolves the receiving partner, and credits
// the partner wallet exactly once per gateway transaction.
package inbound

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
)

// Ack result codes returned to the bank gateway
const (
	AckAccepted = "0"
	AckRejected = "1"
)

// Notification is the bank paybill payment notification payload
type Notification struct {
	TransType         string `json:"TransType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	Mobile            string `json:"Mobile"`
	Name              string `json:"Name"`
	Username          string `json:"Username"`
	Password          string `json:"Password"`
	Hash              string `json:"Hash"`
}

// Ack is the synchronous acknowledgement. The bank gateway only understands
// this shape; it is returned for every notification, valid or not.
type Ack struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func accepted(desc string) *Ack {
	return &Ack{ResultCode: AckAccepted, ResultDesc: desc}
}

func rejected(desc string) *Ack {
	return &Ack{ResultCode: AckRejected, ResultDesc: desc}
}

// TxRunner runs a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Processor validates and applies inbound paybill notifications
type Processor struct {
	txRunner     TxRunner
	transactions c2b.Repository
	partners     partner.Repository
	wallets      wallet.Repository
	cfg          *config.PaybillConfig
	logger       *slog.Logger
}

// NewProcessor creates an inbound notification processor
func NewProcessor(
	txRunner TxRunner,
	transactions c2b.Repository,
	partners partner.Repository,
	wallets wallet.Repository,
	cfg *config.PaybillConfig,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		txRunner:     txRunner,
		transactions: transactions,
		partners:     partners,
		wallets:      wallets,
		cfg:          cfg,
		logger:       logger,
	}
}

// Process handles one notification and always returns an acknowledgement.
// Authentication failures are rejected without persisting anything; an
// authentic payment is always stored, even when the partner cannot be
// resolved, because the money has already moved at the bank.
func (p *Processor) Process(ctx context.Context, n *Notification) *Ack {
	logger := p.logger.With("trans_id", n.TransID)

	if !p.credentialsValid(n) {
		logger.Warn("Notification rejected: invalid credentials")
		return rejected("invalid credentials")
	}

	if n.BusinessShortCode != p.cfg.ShortCode {
		logger.Warn("Notification rejected: unexpected short code", "short_code", n.BusinessShortCode)
		return rejected("unknown business short code")
	}

	if !p.hashValid(n) {
		logger.Warn("Notification rejected: hash mismatch")
		return rejected("integrity check failed")
	}

	if n.TransID == "" {
		return rejected("missing transaction id")
	}

	// A replayed TransID is acknowledged without touching the wallet again
	existing, err := p.transactions.GetByTransactionID(ctx, n.TransID)
	if err != nil {
		logger.Error("Failed to check for duplicate notification", "error", err)
		return rejected("temporary processing failure")
	}
	if existing != nil {
		logger.Info("Duplicate notification acknowledged", "status", existing.Status)
		return accepted("transaction already processed")
	}

	amount, err := parseAmount(n.TransAmount)
	if err != nil || amount <= 0 {
		logger.Warn("Notification rejected: invalid amount", "amount", n.TransAmount)
		return p.store(ctx, n, 0, nil, c2b.StatusRejected, "invalid transaction amount", rejected("invalid transaction amount"))
	}

	accountNumber, token := p.splitBillRef(n.BillRefNumber)
	if accountNumber != p.cfg.AccountNumber || token == "" {
		logger.Warn("Notification unmatched: unrecognized account reference", "bill_ref", n.BillRefNumber)
		return p.store(ctx, n, amount, nil, c2b.StatusUnmatched, "unrecognized account reference", accepted("accepted for manual allocation"))
	}

	pt, err := p.partners.GetByShortCode(ctx, token)
	if err != nil {
		var notFound partner.ErrPartnerNotFound
		if errors.As(err, &notFound) {
			logger.Warn("Notification unmatched: no active partner for token", "token", token)
			return p.store(ctx, n, amount, nil, c2b.StatusUnmatched, "no active partner for token", accepted("accepted for manual allocation"))
		}
		logger.Error("Failed to resolve partner", "error", err)
		return rejected("temporary processing failure")
	}

	// Store the transaction and credit the wallet atomically
	tx := p.newTransaction(n, amount, &pt.ID, c2b.StatusCompleted, "")
	credit, err := wallet.NewTransaction(pt.ID, wallet.TypeCredit, amount, n.TransID, "paybill payment from "+n.Mobile)
	if err != nil {
		logger.Error("Failed to build wallet credit", "error", err)
		return rejected("temporary processing failure")
	}

	err = p.txRunner.ExecuteTx(ctx, func(dbTx pgx.Tx) error {
		if err := p.transactions.WithTx(dbTx).Create(ctx, tx); err != nil {
			return err
		}
		return p.wallets.WithTx(dbTx).Credit(ctx, credit)
	})
	if err != nil {
		var dupErr wallet.ErrDuplicateEntry
		if errors.As(err, &dupErr) {
			// A concurrent delivery won the race; its credit stands
			logger.Info("Concurrent duplicate notification acknowledged")
			return accepted("transaction already processed")
		}
		logger.Error("Failed to apply inbound payment", "error", err)
		return rejected("temporary processing failure")
	}

	logger.Info("Inbound payment credited",
		"partner_id", pt.ID.String(),
		"amount", amount,
		"balance_after", credit.BalanceAfter,
	)
	return accepted("transaction processed successfully")
}

// store persists a transaction row that will not credit a wallet and returns
// the given acknowledgement. Persistence failures downgrade the ack to a
// rejection so the gateway redelivers.
func (p *Processor) store(ctx context.Context, n *Notification, amount int64, partnerID *uuid.UUID, status, reason string, ack *Ack) *Ack {
	tx := p.newTransaction(n, amount, partnerID, status, reason)
	if err := p.transactions.Create(ctx, tx); err != nil {
		p.logger.Error("Failed to store inbound transaction", "trans_id", n.TransID, "error", err)
		return rejected("temporary processing failure")
	}
	return ack
}

func (p *Processor) newTransaction(n *Notification, amount int64, partnerID *uuid.UUID, status, reason string) *c2b.Transaction {
	accountNumber, _ := p.splitBillRef(n.BillRefNumber)
	now := time.Now()
	return &c2b.Transaction{
		ID:            uuid.New(),
		TransactionID: n.TransID,
		TransType:     n.TransType,
		TransTime:     n.TransTime,
		Amount:        amount,
		ShortCode:     n.BusinessShortCode,
		BillRefNumber: n.BillRefNumber,
		AccountNumber: accountNumber,
		Msisdn:        n.Mobile,
		CustomerName:  n.Name,
		PartnerID:     partnerID,
		Status:        status,
		FailureReason: reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (p *Processor) credentialsValid(n *Notification) bool {
	userOK := subtle.ConstantTimeCompare([]byte(n.Username), []byte(p.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(n.Password), []byte(p.cfg.Password)) == 1
	return userOK && passOK
}

// hashValid recomputes the notification hash from the shared secret and the
// payload fields in wire order and compares it in constant time.
func (p *Processor) hashValid(n *Notification) bool {
	expected := ComputeHash(p.cfg.SecretKey, n)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.Hash)) == 1
}

// ComputeHash builds the paybill notification integrity hash:
// base64 of the hex-encoded SHA-256 over the concatenated fields.
func ComputeHash(secret string, n *Notification) string {
	payload := secret + n.TransType + n.TransID + n.TransTime + n.TransAmount +
		n.BusinessShortCode + n.BillRefNumber + n.Mobile + n.Name + "1"
	sum := sha256.Sum256([]byte(payload))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
}

// splitBillRef separates the account reference into the fixed account number
// and the partner token. Anything other than exactly two parts is malformed,
// including a reference carrying extra separators.
func (p *Processor) splitBillRef(billRef string) (accountNumber, token string) {
	parts := strings.Split(billRef, p.cfg.Separator)
	if len(parts) != 2 {
		return billRef, ""
	}
	return parts[0], parts[1]
}

// parseAmount converts the decimal major-unit amount string to minor units
func parseAmount(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * 100)), nil
}
