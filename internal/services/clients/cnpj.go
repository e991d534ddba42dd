package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// StatusError is returned when the registry answers with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Erro na consulta: %d", e.StatusCode)
}

// CNPJLookup queries the public CNPJ registry (publica.cnpj.ws).
type CNPJLookup struct {
	baseURL string
	client  *http.Client
}

// NewCNPJLookup creates a lookup against cfg.BaseURL.
func NewCNPJLookup(cfg config.CNPJConfig) *CNPJLookup {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CNPJLookup{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// registry numbers come back as strings or numbers depending on the field
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type cnpjResponse struct {
	RazaoSocial     string `json:"razao_social"`
	Estabelecimento struct {
		CNPJ            flexString `json:"cnpj"`
		NomeFantasia    flexString `json:"nome_fantasia"`
		TipoLogradouro  flexString `json:"tipo_logradouro"`
		Logradouro      flexString `json:"logradouro"`
		Numero          flexString `json:"numero"`
		Complemento     flexString `json:"complemento"`
		Bairro          flexString `json:"bairro"`
		CEP             flexString `json:"cep"`
		DDD1            flexString `json:"ddd1"`
		Telefone1       flexString `json:"telefone1"`
		DDD2            flexString `json:"ddd2"`
		Telefone2       flexString `json:"telefone2"`
		Email           flexString `json:"email"`
		InscricoesEstad []struct {
			InscricaoEstadual flexString `json:"inscricao_estadual"`
		} `json:"inscricoes_estaduais"`
		Cidade struct {
			IBGEID flexString `json:"ibge_id"`
			Nome   flexString `json:"nome"`
		} `json:"cidade"`
		Estado struct {
			Sigla flexString `json:"sigla"`
		} `json:"estado"`
		Pais struct {
			Nome flexString `json:"nome"`
		} `json:"pais"`
	} `json:"estabelecimento"`
}

// Fetch returns the client fields registered for cnpj.
func (l *CNPJLookup) Fetch(ctx context.Context, cnpj string) (*Input, error) {
	cnpj = utils.CleanDocument(cnpj)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+cnpj, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CNPJ lookup %s: %w", cnpj, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var data cnpjResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode CNPJ response: %w", err)
	}
	return data.toInput(cnpj), nil
}

func (r *cnpjResponse) toInput(cnpj string) *Input {
	est := r.Estabelecimento

	doc := utils.CleanDocument(string(est.CNPJ))
	if doc == "" {
		doc = cnpj
	}
	phone := string(est.Telefone1)
	if phone == "" {
		phone = string(est.Telefone2)
	}
	var ie string
	if len(est.InscricoesEstad) > 0 {
		ie = string(est.InscricoesEstad[0].InscricaoEstadual)
	}

	return &Input{
		Document:          doc,
		Name:              r.RazaoSocial,
		TradeName:         utils.StringPtr(string(est.NomeFantasia)),
		Street:            utils.StringPtr(string(est.TipoLogradouro) + " " + string(est.Logradouro)),
		Number:            utils.StringPtr(string(est.Numero)),
		District:          utils.StringPtr(string(est.Bairro)),
		StateRegistration: utils.StringPtr(ie),
		City:              utils.StringPtr(string(est.Cidade.Nome)),
		State:             utils.StringPtr(string(est.Estado.Sigla)),
		ZipCode:           utils.StringPtr(string(est.CEP)),
		Complement:        utils.StringPtr(string(est.Complemento)),
		Country:           utils.StringPtr(string(est.Pais.Nome)),
		IBGECode:          utils.StringPtr(string(est.Cidade.IBGEID)),
		Phone:             utils.StringPtr(phone),
		Email:             utils.StringPtr(string(est.Email)),
	}
}
