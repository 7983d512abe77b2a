package cnpjws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestClient(t *testing.T, srv *httptest.Server) Client {
	t.Helper()
	t.Setenv("CNPJWS_BASE_URL", srv.URL)
	t.Setenv("CNPJWS_MAX_RETRIES", "1")
	c, err := NewClient(testLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNormalizeCNPJ(t *testing.T) {
	got, err := NormalizeCNPJ("12.345.678/0001-95")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "12345678000195" {
		t.Fatalf("unexpected digits: %q", got)
	}

	if _, err := NormalizeCNPJ("123"); !apierr.Is(err, apierr.CodeInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestLookup_DecodesRegistryPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cnpj/12345678000195" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"razao_social": "Corretora Exemplo LTDA",
			"estabelecimento": {
				"cnpj": "12345678000195",
				"nome_fantasia": "Exemplo Seguros",
				"situacao_cadastral": "Ativa",
				"data_inicio_atividade": "2010-05-01",
				"logradouro": "Rua A",
				"numero": "100",
				"cep": "01000000",
				"cidade": {"nome": "Sao Paulo"},
				"estado": {"sigla": "SP"},
				"atividade_principal": {"descricao": "Corretagem de seguros"}
			}
		}`))
	}))
	defer srv.Close()

	company, err := newTestClient(t, srv).Lookup(context.Background(), "12.345.678/0001-95")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if company.LegalName != "Corretora Exemplo LTDA" {
		t.Fatalf("unexpected legal name: %q", company.LegalName)
	}
	if company.TradeName != "Exemplo Seguros" || company.City != "Sao Paulo" || company.State != "SP" {
		t.Fatalf("unexpected company: %+v", company)
	}
}

func TestLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Lookup(context.Background(), "12345678000195")
	if !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestLookup_RateLimitedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Lookup(context.Background(), "12345678000195")
	if !apierr.Is(err, apierr.CodeRateLimited) {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("rate-limited lookup retried: %d calls", n)
	}
}

func TestLookup_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"razao_social": "Ok", "estabelecimento": {"cnpj": "12345678000195"}}`))
	}))
	defer srv.Close()

	company, err := newTestClient(t, srv).Lookup(context.Background(), "12345678000195")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if company.LegalName != "Ok" {
		t.Fatalf("unexpected company: %+v", company)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected one retry, got %d calls", n)
	}
}
