package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"voice-banking/internal/config"
	"voice-banking/internal/domain/dto"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/metrics"
)

// NessieProvider talks to the Capital One Nessie sandbox. The API key travels in the query string.
type NessieProvider struct {
	Logger     *logger.Logger
	HttpClient *http.Client
	Config     config.NessieConfig
}

func NewNessieProvider(logger *logger.Logger, httpClient *http.Client, cfg config.NessieConfig) *NessieProvider {
	return &NessieProvider{Logger: logger, HttpClient: httpClient, Config: cfg}
}

func (th *NessieProvider) Configured() bool {
	return th.Config.APIKey != ""
}

func (th *NessieProvider) GetAccount(ctx context.Context, accountID string) (dto.NessieAccount, error) {
	var account dto.NessieAccount
	err := th.do(ctx, "get_account", http.MethodGet, fmt.Sprintf("/accounts/%s", url.PathEscape(accountID)), nil, th.Config.BalanceTimeout, http.StatusOK, &account)
	return account, err
}

func (th *NessieProvider) CreateBill(ctx context.Context, accountID string, bill dto.NessieBillRequest) (dto.NessieCreated, error) {
	var created dto.NessieCreated
	err := th.do(ctx, "create_bill", http.MethodPost, fmt.Sprintf("/accounts/%s/bills", url.PathEscape(accountID)), bill, th.Config.BillTimeout, http.StatusCreated, &created)
	return created, err
}

func (th *NessieProvider) ListBills(ctx context.Context, accountID string) ([]dto.NessieBill, error) {
	var bills []dto.NessieBill
	err := th.do(ctx, "list_bills", http.MethodGet, fmt.Sprintf("/accounts/%s/bills", url.PathEscape(accountID)), nil, th.Config.BalanceTimeout, http.StatusOK, &bills)
	return bills, err
}

func (th *NessieProvider) ListPurchases(ctx context.Context, accountID string) ([]dto.NessiePurchase, error) {
	var purchases []dto.NessiePurchase
	err := th.do(ctx, "list_purchases", http.MethodGet, fmt.Sprintf("/accounts/%s/purchases", url.PathEscape(accountID)), nil, th.Config.BalanceTimeout, http.StatusOK, &purchases)
	return purchases, err
}

func (th *NessieProvider) ListTransfers(ctx context.Context, accountID string) ([]dto.NessieTransfer, error) {
	var transfers []dto.NessieTransfer
	err := th.do(ctx, "list_transfers", http.MethodGet, fmt.Sprintf("/accounts/%s/transfers", url.PathEscape(accountID)), nil, th.Config.BalanceTimeout, http.StatusOK, &transfers)
	return transfers, err
}

func (th *NessieProvider) CreateTransfer(ctx context.Context, accountID string, transfer dto.NessieTransferRequest) (dto.NessieCreated, error) {
	var created dto.NessieCreated
	err := th.do(ctx, "create_transfer", http.MethodPost, fmt.Sprintf("/accounts/%s/transfers", url.PathEscape(accountID)), transfer, th.Config.BillTimeout, http.StatusCreated, &created)
	return created, err
}

func (th *NessieProvider) CreateCustomer(ctx context.Context, customer dto.NessieCustomerRequest) (dto.NessieCreated, error) {
	var created dto.NessieCreated
	err := th.do(ctx, "create_customer", http.MethodPost, "/customers", customer, th.Config.BillTimeout, http.StatusCreated, &created)
	return created, err
}

func (th *NessieProvider) CreateAccount(ctx context.Context, customerID string, account dto.NessieAccountRequest) (dto.NessieCreated, error) {
	var created dto.NessieCreated
	err := th.do(ctx, "create_account", http.MethodPost, fmt.Sprintf("/customers/%s/accounts", url.PathEscape(customerID)), account, th.Config.BillTimeout, http.StatusCreated, &created)
	return created, err
}

func (th *NessieProvider) CreateWithdrawal(ctx context.Context, accountID string, withdrawal dto.NessieWithdrawalRequest) (dto.NessieCreated, error) {
	var created dto.NessieCreated
	err := th.do(ctx, "create_withdrawal", http.MethodPost, fmt.Sprintf("/accounts/%s/withdrawals", url.PathEscape(accountID)), withdrawal, th.Config.BillTimeout, http.StatusCreated, &created)
	return created, err
}

func (th *NessieProvider) do(ctx context.Context, operation, method, path string, payload any, timeout time.Duration, expected int, out any) error {
	if !th.Configured() {
		return ErrNotConfigured
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			th.Logger.Error(fmt.Sprintf("Failed to marshal payload %v", err))
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(payloadBytes)
	}

	endpoint := fmt.Sprintf("%s%s?key=%s", th.Config.BaseURL, path, url.QueryEscape(th.Config.APIKey))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to create HTTP request %v", err))
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := th.HttpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues("nessie", operation).Observe(time.Since(start).Seconds())
	if err != nil {
		th.Logger.Error(fmt.Sprintf("HTTP request failed %v", err))
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to read response body %v", err))
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode != expected {
		th.Logger.Warn(fmt.Sprintf("Unexpected HTTP status %s response_body %s", res.Status, string(resBody)))
		return &StatusError{Code: res.StatusCode, Body: string(resBody)}
	}

	if out == nil || len(resBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to unmarshal response body %v", err))
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}
