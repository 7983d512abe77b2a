package services

import (
	"context"

	"github.com/apoliceplus/backend/internal/clients/cnpjws"
	"github.com/apoliceplus/backend/internal/platform/logger"
)

// CompanyService proxies CNPJ registry lookups for the front end.
type CompanyService interface {
	LookupCNPJ(ctx context.Context, cnpj string) (*cnpjws.Company, error)
}

type companyService struct {
	log    *logger.Logger
	cnpjws cnpjws.Client
}

func NewCompanyService(baseLog *logger.Logger, cnpjClient cnpjws.Client) CompanyService {
	return &companyService{
		log:    baseLog.With("service", "CompanyService"),
		cnpjws: cnpjClient,
	}
}

func (cs *companyService) LookupCNPJ(ctx context.Context, cnpj string) (*cnpjws.Company, error) {
	company, err := cs.cnpjws.Lookup(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	return company, nil
}
