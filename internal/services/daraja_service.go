package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"afyapay/internal/caching"
	"afyapay/internal/common"
	"afyapay/internal/config"
	"afyapay/internal/models"
	"afyapay/internal/repositories"
	"afyapay/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const darajaTokenCacheKey = "afyapay:daraja:token"

// DarajaService handles all Daraja (M-Pesa) API interactions
type DarajaService interface {
	// InitiateSTKPush asks the gateway to prompt the payer's phone and
	// persists a pending request keyed by the gateway's CheckoutRequestID.
	InitiateSTKPush(ctx context.Context, params *STKPushParams) (*models.GatewayRequest, error)
	// QueryStatus is the synchronous poll fallback for callers that cannot
	// wait for the callback. A timeout here is not a verdict on the payment.
	QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error)
}

type darajaService struct {
	cfg      *config.DarajaConfig
	http     *http.Client
	cache    caching.CacheService
	requests repositories.GatewayRequestRepository
	logger   *zap.Logger

	// refreshMu keeps at most one token refresh in flight; concurrent
	// callers wait for the holder and re-read the cache.
	refreshMu sync.Mutex
}

// STKPushParams carries one push-payment request plus the entity it settles.
type STKPushParams struct {
	Phone            string
	Amount           float64
	AccountReference string
	Description      string
	EntityType       string
	EntityID         uuid.UUID
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the gateway's answer to a synchronous status poll.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// NewDarajaService creates a new Daraja service instance
func NewDarajaService(cfg *config.DarajaConfig, cache caching.CacheService, requests repositories.GatewayRequestRepository) DarajaService {
	return &darajaService{
		cfg:      cfg,
		http:     &http.Client{Timeout: time.Duration(cfg.Timeouts.HTTPTimeoutSeconds) * time.Second},
		cache:    cache,
		requests: requests,
		logger:   utils.GetLogger(),
	}
}

func (s *darajaService) InitiateSTKPush(ctx context.Context, params *STKPushParams) (*models.GatewayRequest, error) {
	phone, err := common.NormalizePhoneNumber(params.Phone)
	if err != nil {
		return nil, err
	}
	if err := common.ValidatePositiveFloat(params.Amount, "amount", 10000000); err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	payload := &stkPushRequest{
		BusinessShortCode: s.cfg.Daraja.ShortCode,
		Password:          s.stkPassword(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            strconv.FormatFloat(params.Amount, 'f', -1, 64),
		PartyA:            phone,
		PartyB:            s.cfg.Daraja.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       s.cfg.Daraja.CallbackURL,
		AccountReference:  params.AccountReference,
		TransactionDesc:   params.Description,
	}

	body, err := s.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return nil, err
	}

	var resp stkPushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed push response: %v", ErrGatewayUnavailable, err)
	}
	if resp.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, resp.ResponseDescription)
	}

	req := &models.GatewayRequest{
		ID:                uuid.New(),
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		PhoneNumber:       phone,
		Amount:            params.Amount,
		AccountReference:  params.AccountReference,
		Description:       params.Description,
		Status:            models.GatewayRequestPending,
		EntityType:        params.EntityType,
		EntityID:          params.EntityID,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		// The push is already on the wire; losing the local record would
		// strand the callback, so this is a hard failure worth shouting about.
		s.logger.Error("failed to persist gateway request",
			zap.String("checkout_request_id", resp.CheckoutRequestID), zap.Error(err))
		return nil, common.SecureErrorMessage("persist gateway request", err)
	}

	s.logger.Info("stk push initiated",
		zap.String("checkout_request_id", req.CheckoutRequestID),
		zap.String("account_reference", req.AccountReference),
		zap.Float64("amount", req.Amount))

	return req, nil
}

func (s *darajaService) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	timestamp := time.Now().Format("20060102150405")
	payload := &stkQueryRequest{
		BusinessShortCode: s.cfg.Daraja.ShortCode,
		Password:          s.stkPassword(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	body, err := s.postJSON(ctx, "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, err
	}

	var resp STKQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed query response: %v", ErrGatewayUnavailable, err)
	}
	return &resp, nil
}

// stkPassword builds the per-request password the gateway expects.
func (s *darajaService) stkPassword(timestamp string) string {
	raw := s.cfg.Daraja.ShortCode + s.cfg.Daraja.PassKey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// accessToken returns a cached token or performs a client-credential
// exchange. The refresh mutex plus the cache double-check keeps concurrent
// callers on a single in-flight refresh.
func (s *darajaService) accessToken(ctx context.Context, force bool) (string, error) {
	if !force {
		if token, err := s.cache.GetString(ctx, darajaTokenCacheKey); err == nil && token != "" {
			return token, nil
		}
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if !force {
		if token, err := s.cache.GetString(ctx, darajaTokenCacheKey); err == nil && token != "" {
			return token, nil
		}
	}

	url := s.cfg.Daraja.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(s.cfg.Daraja.ConsumerKey, s.cfg.Daraja.ConsumerSecret)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", ErrGatewayUnavailable)
	}

	expiresIn, err := strconv.Atoi(token.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 3599
	}
	ttl := time.Duration(expiresIn-s.cfg.Timeouts.TokenExpiryMarginSecond) * time.Second
	if ttl <= 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if err := s.cache.SetString(ctx, darajaTokenCacheKey, token.AccessToken, ttl); err != nil {
		s.logger.Warn("failed to cache gateway token", zap.Error(err))
	}

	return token.AccessToken, nil
}

// postJSON issues an authenticated POST, refreshing the token once on 401.
func (s *darajaService) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, status, err := s.doPost(ctx, path, payload, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		body, status, err = s.doPost(ctx, path, payload, true)
		if err != nil {
			return nil, err
		}
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: authentication rejected after refresh", ErrGatewayUnavailable)
	}
	if status >= 500 {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrGatewayUnavailable, status)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway returned %d: %s", ErrGatewayRejected, status, string(body))
	}
	return body, nil
}

func (s *darajaService) doPost(ctx context.Context, path string, payload any, forceRefresh bool) ([]byte, int, error) {
	token, err := s.accessToken(ctx, forceRefresh)
	if err != nil {
		return nil, 0, err
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Daraja.BaseURL+path, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return respBody, resp.StatusCode, nil
}
