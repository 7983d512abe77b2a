package cnpjws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/envutil"
	"github.com/apoliceplus/backend/internal/platform/httpx"
	"github.com/apoliceplus/backend/internal/platform/logger"
)

// Client looks up Brazilian company registrations (CNPJ) on the public
// cnpj.ws API.
type Client interface {
	Lookup(ctx context.Context, cnpj string) (*Company, error)
}

type Company struct {
	CNPJ        string `json:"cnpj"`
	LegalName   string `json:"legal_name"`
	TradeName   string `json:"trade_name,omitempty"`
	Status      string `json:"status"`
	FoundedAt   string `json:"founded_at,omitempty"`
	Street      string `json:"street,omitempty"`
	Number      string `json:"number,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	MainCNAE    string `json:"main_cnae,omitempty"`
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(envutil.String("CNPJWS_BASE_URL", "https://publica.cnpj.ws"), "/")
	timeout := envutil.Seconds("CNPJWS_TIMEOUT_SECONDS", 15*time.Second)
	maxRetries := envutil.Int("CNPJWS_MAX_RETRIES", 2)
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		log:        log.With("service", "CNPJWSClient"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}, nil
}

// NormalizeCNPJ strips formatting and validates the 14-digit shape.
func NormalizeCNPJ(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 14 {
		return "", apierr.InvalidInput(fmt.Errorf("cnpj must have 14 digits, got %d", len(digits)))
	}
	return digits, nil
}

type lookupResponse struct {
	RazaoSocial     string `json:"razao_social"`
	Estabelecimento struct {
		CNPJ                string `json:"cnpj"`
		NomeFantasia        string `json:"nome_fantasia"`
		SituacaoCadastral   string `json:"situacao_cadastral"`
		DataInicioAtividade string `json:"data_inicio_atividade"`
		Logradouro          string `json:"logradouro"`
		Numero              string `json:"numero"`
		CEP                 string `json:"cep"`
		Cidade              struct {
			Nome string `json:"nome"`
		} `json:"cidade"`
		Estado struct {
			Sigla string `json:"sigla"`
		} `json:"estado"`
		AtividadePrincipal struct {
			Descricao string `json:"descricao"`
		} `json:"atividade_principal"`
	} `json:"estabelecimento"`
}

func (c *client) Lookup(ctx context.Context, cnpj string) (*Company, error) {
	digits, err := NormalizeCNPJ(cnpj)
	if err != nil {
		return nil, err
	}

	backoff := 1 * time.Second
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		company, retryable, err := c.lookupOnce(ctx, digits)
		if err == nil {
			return company, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("CNPJ lookup retrying",
			"cnpj", digits,
			"attempt", attempt+1,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return nil, lastErr
}

func (c *client) lookupOnce(ctx context.Context, digits string) (*Company, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cnpj/"+digits, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, apierr.Upstream(fmt.Errorf("cnpj lookup: %w", err))
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, true, apierr.Upstream(fmt.Errorf("cnpj lookup read: %w", readErr))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, apierr.NotFound(fmt.Errorf("cnpj %s not found", digits))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, apierr.RateLimited(fmt.Errorf("cnpj registry rate limit"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		retryable := httpx.IsRetryableHTTPStatus(resp.StatusCode)
		return nil, retryable, apierr.Upstream(fmt.Errorf("cnpj registry http %d", resp.StatusCode))
	}

	var decoded lookupResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false, apierr.Upstream(fmt.Errorf("cnpj registry decode: %w", err))
	}

	est := decoded.Estabelecimento
	return &Company{
		CNPJ:       digits,
		LegalName:  decoded.RazaoSocial,
		TradeName:  est.NomeFantasia,
		Status:     est.SituacaoCadastral,
		FoundedAt:  est.DataInicioAtividade,
		Street:     est.Logradouro,
		Number:     est.Numero,
		City:       est.Cidade.Nome,
		State:      est.Estado.Sigla,
		PostalCode: est.CEP,
		MainCNAE:   est.AtividadePrincipal.Descricao,
	}, false, nil
}
