package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"thesiscert/internal/config"
	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/model"
)

// registryABI is the interface of the thesis registry contract.
const registryABI = `[
 {"type":"function","name":"certifyThesis","stateMutability":"nonpayable","inputs":[
  {"name":"thesisId","type":"string"},{"name":"userId","type":"string"},
  {"name":"institutionId","type":"string"},{"name":"ipfsCid","type":"string"},
  {"name":"fileHash","type":"string"},{"name":"hashAlgorithm","type":"string"}],"outputs":[]},
 {"type":"function","name":"getCertificate","stateMutability":"view","inputs":[
  {"name":"thesisId","type":"string"}],"outputs":[
  {"name":"thesisId","type":"string"},{"name":"userId","type":"string"},
  {"name":"institutionId","type":"string"},{"name":"ipfsCid","type":"string"},
  {"name":"fileHash","type":"string"},{"name":"hashAlgorithm","type":"string"},
  {"name":"issuedAt","type":"uint256"},{"name":"exists","type":"bool"}]},
 {"type":"function","name":"isCertified","stateMutability":"view","inputs":[
  {"name":"thesisId","type":"string"}],"outputs":[{"name":"","type":"bool"}]}
]`

type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
}

// dropCheckTimeout bounds the lookup made after the confirmation wait expired.
const dropCheckTimeout = 5 * time.Second

// ethereumClient anchors through a registry contract on an EVM chain.
type ethereumClient struct {
	contract *bind.BoundContract
	receipts receiptReader
	key      *ecdsa.PrivateKey
	chainID  *big.Int

	pollInterval   time.Duration
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// NewEthereum dials the RPC endpoint and binds the registry contract. The node's
// chain id must match the configured one.
func NewEthereum(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (Client, error) {
	if cfg.RPCURL == "" || cfg.PrivateKey == "" || cfg.ContractAddress == "" {
		return nil, fmt.Errorf("ledger rpc url, private key and contract address are required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		rpc.Close()
		return nil, fmt.Errorf("ledger rpc serves chain %s, configured %d", chainID, cfg.ChainID)
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	logger = logger.With(zap.String("component", "ledger"), zap.String("provider", "ethereum"))
	logger.Info("ledger client ready",
		zap.String("contract", addr.Hex()),
		zap.String("signer", crypto.PubkeyToAddress(key.PublicKey).Hex()),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &ethereumClient{
		contract:       bind.NewBoundContract(addr, parsed, rpc, rpc, rpc),
		receipts:       rpc,
		key:            key,
		chainID:        chainID,
		pollInterval:   cfg.PollInterval,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         logger,
	}, nil
}

func (c *ethereumClient) Provider() string { return "ethereum" }

func (c *ethereumClient) ChainID() int64 { return c.chainID.Int64() }

func (c *ethereumClient) Submit(ctx context.Context, req AnchorRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, "certifyThesis",
		req.ThesisID, req.UploaderID, req.InstitutionID,
		req.ContentID, req.Digest, string(req.DigestAlgorithm),
	)
	if err != nil {
		return "", classifySubmit(ctx, err)
	}

	c.logger.Info("anchor submitted", zap.String("thesis_id", req.ThesisID), zap.String("tx_hash", tx.Hash().Hex()))
	return tx.Hash().Hex(), nil
}

func (c *ethereumClient) WaitConfirmed(ctx context.Context, txHash string) (Receipt, error) {
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}
	return waitReceipt(ctx, c.receipts, txHash, c.pollInterval, c.chainID.Int64(), c.logger)
}

func waitReceipt(ctx context.Context, r receiptReader, txHash string, interval time.Duration, chainID int64, logger *zap.Logger) (Receipt, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	hash := common.HexToHash(txHash)

	var out Receipt
	op := func() error {
		rcpt, err := r.TransactionReceipt(ctx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				logger.Debug("receipt poll failed", zap.String("tx_hash", txHash), zap.Error(err))
			}
			return err
		}
		if rcpt.Status == types.ReceiptStatusFailed {
			return backoff.Permanent(errs.Wrap(errs.KindConflict, "anchor transaction "+txHash+" reverted", ErrReverted))
		}
		out = Receipt{TxHash: txHash, ChainID: chainID, BlockNumber: rcpt.BlockNumber.Uint64()}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrReverted):
		return Receipt{}, err
	case ctx.Err() != nil:
		if dropped(ctx, r, hash) {
			logger.Warn("anchor transaction unknown to the node", zap.String("tx_hash", txHash))
			return Receipt{}, errs.Wrap(errs.KindTransient, "anchor transaction "+txHash+" was dropped", ErrDropped)
		}
		return Receipt{}, &TimeoutError{TxHash: txHash}
	}
	return Receipt{}, errs.Transient("poll anchor receipt", err)
}

// dropped reports whether the node has neither mined nor pooled the transaction.
// Lookup failures count as not dropped so the caller keeps re-polling.
func dropped(ctx context.Context, r receiptReader, hash common.Hash) bool {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dropCheckTimeout)
	defer cancel()
	_, _, err := r.TransactionByHash(lctx, hash)
	return errors.Is(err, ethereum.NotFound)
}

func (c *ethereumClient) GetCertificate(ctx context.Context, thesisID string) (*model.LedgerCertificate, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getCertificate", thesisID); err != nil {
		return nil, classifyRead(ctx, err)
	}
	cert, exists, err := decodeCertificate(out)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.ErrNotCertified
	}
	return cert, nil
}

func (c *ethereumClient) IsCertified(ctx context.Context, thesisID string) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isCertified", thesisID); err != nil {
		return false, classifyRead(ctx, err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("isCertified: unexpected %d outputs", len(out))
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("isCertified: unexpected output type %T", out[0])
	}
	return ok, nil
}

func decodeCertificate(out []interface{}) (*model.LedgerCertificate, bool, error) {
	if len(out) != 8 {
		return nil, false, fmt.Errorf("getCertificate: unexpected %d outputs", len(out))
	}
	var s [6]string
	for i := range s {
		v, ok := out[i].(string)
		if !ok {
			return nil, false, fmt.Errorf("getCertificate: output %d has type %T", i, out[i])
		}
		s[i] = v
	}
	issued, ok := out[6].(*big.Int)
	if !ok {
		return nil, false, fmt.Errorf("getCertificate: issuedAt has type %T", out[6])
	}
	exists, ok := out[7].(bool)
	if !ok {
		return nil, false, fmt.Errorf("getCertificate: exists has type %T", out[7])
	}
	if !exists {
		return nil, false, nil
	}
	return &model.LedgerCertificate{
		ThesisID:        s[0],
		UploaderID:      s[1],
		InstitutionID:   s[2],
		ContentID:       s[3],
		Digest:          s[4],
		DigestAlgorithm: fingerprint.Algorithm(s[5]),
		IssuedAt:        time.Unix(issued.Int64(), 0).UTC(),
	}, true, nil
}

func classifySubmit(ctx context.Context, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case strings.Contains(msg, "revert"):
		return fmt.Errorf("%w: %v", ErrReverted, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrRPCUnavailable, ctx.Err())
	}
	return fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
}

func classifyRead(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Transient("ledger read timed out", ctx.Err())
	}
	return errs.Transient("ledger read failed", err)
}
