// Package nfe extracts the recipient and product lines from NFe XML documents.
// Signature and schema validity are not checked.
package nfe

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	defaultUnit    = "UN"
	defaultCSTICMS = "40"
)

// ErrNotNFe is returned for well-formed XML that holds neither an invoice nor an event.
var ErrNotNFe = errors.New("document has no infNFe or procEventoNFe element")

// Document is the part of an NFe the import pipeline needs.
type Document struct {
	Number     string    `json:"numero"`
	Series     string    `json:"serie"`
	IssuedAt   string    `json:"dataEmissao"`
	TotalValue string    `json:"valorTotal"`
	AccessKey  string    `json:"chave"`
	Recipient  Recipient `json:"destinatario"`
	Items      []Item    `json:"produtos"`
	Cancelled  bool      `json:"cancelada"`
}

// Recipient is the dest block.
type Recipient struct {
	Document          string `json:"documento"`
	Name              string `json:"nome"`
	TradeName         string `json:"nomeFantasia"`
	Street            string `json:"logradouro"`
	Number            string `json:"numero"`
	District          string `json:"bairro"`
	StateRegistration string `json:"inscricaoEstadual"`
	City              string `json:"cidade"`
	State             string `json:"uf"`
	ZipCode           string `json:"cep"`
	Complement        string `json:"enderecoComplemento"`
	Country           string `json:"enderecoPais"`
	IBGECode          string `json:"ibgeId"`
	Phone             string `json:"telefone"`
	Email             string `json:"email"`
}

// Item is one det/prod line.
type Item struct {
	Code       string `json:"codigo"`
	Name       string `json:"nome"`
	NCM        string `json:"ncm"`
	CFOP       string `json:"cfop"`
	Unit       string `json:"unidade"`
	Quantity   string `json:"quantidade"`
	UnitValue  string `json:"valorUnitario"`
	TotalValue string `json:"valorTotal"`
	CSTICMS    string `json:"cstIcms"`
}

// Tags carry no namespace so both namespaced and bare documents match.
type infNFe struct {
	ID  string `xml:"Id,attr"`
	Ide struct {
		NNF   string `xml:"nNF"`
		Serie string `xml:"serie"`
		DhEmi string `xml:"dhEmi"`
		DEmi  string `xml:"dEmi"`
	} `xml:"ide"`
	Dest struct {
		CNPJ      string `xml:"CNPJ"`
		CPF       string `xml:"CPF"`
		XNome     string `xml:"xNome"`
		XFant     string `xml:"xFant"`
		IE        string `xml:"IE"`
		Fone      string `xml:"fone"`
		Email     string `xml:"email"`
		EnderDest struct {
			XLgr    string `xml:"xLgr"`
			Nro     string `xml:"nro"`
			XCpl    string `xml:"xCpl"`
			XBairro string `xml:"xBairro"`
			CMun    string `xml:"cMun"`
			XMun    string `xml:"xMun"`
			UF      string `xml:"UF"`
			CEP     string `xml:"CEP"`
			XPais   string `xml:"xPais"`
		} `xml:"enderDest"`
	} `xml:"dest"`
	Det []struct {
		Prod struct {
			CProd  string `xml:"cProd"`
			XProd  string `xml:"xProd"`
			NCM    string `xml:"NCM"`
			CFOP   string `xml:"CFOP"`
			UCom   string `xml:"uCom"`
			QCom   string `xml:"qCom"`
			VUnCom string `xml:"vUnCom"`
			VProd  string `xml:"vProd"`
		} `xml:"prod"`
		Imposto struct {
			ICMS struct {
				// ICMS00, ICMS40, ICMSSN102 ... exactly one is present
				Groups []struct {
					CST   string `xml:"CST"`
					CSOSN string `xml:"CSOSN"`
				} `xml:",any"`
			} `xml:"ICMS"`
		} `xml:"imposto"`
	} `xml:"det"`
	Total struct {
		ICMSTot struct {
			VNF string `xml:"vNF"`
		} `xml:"ICMSTot"`
	} `xml:"total"`
}

// Parse reads an nfeProc, NFe or procEventoNFe document.
// Malformed XML is an error; there is no recovery mode.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var (
		root      string
		inf       *infNFe
		cancelled bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse NFe XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root == "" {
			root = start.Name.Local
		}

		switch start.Name.Local {
		case "infNFe":
			if inf != nil {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse NFe XML: %w", err)
				}
				continue
			}
			inf = &infNFe{}
			if err := dec.DecodeElement(inf, &start); err != nil {
				return nil, fmt.Errorf("parse infNFe: %w", err)
			}
		case "descEvento":
			var desc string
			if err := dec.DecodeElement(&desc, &start); err != nil {
				return nil, fmt.Errorf("parse descEvento: %w", err)
			}
			if root == "procEventoNFe" && strings.Contains(desc, "Cancelamento") {
				cancelled = true
			}
		}
	}

	if root == "" {
		return nil, fmt.Errorf("parse NFe XML: empty document")
	}
	if inf == nil && root != "procEventoNFe" {
		return nil, ErrNotNFe
	}

	doc := &Document{Cancelled: cancelled}
	if inf != nil {
		inf.fill(doc)
	}
	return doc, nil
}

func (inf *infNFe) fill(doc *Document) {
	t := strings.TrimSpace

	doc.Number = t(inf.Ide.NNF)
	doc.Series = t(inf.Ide.Serie)
	doc.IssuedAt = t(inf.Ide.DhEmi)
	if doc.IssuedAt == "" {
		doc.IssuedAt = t(inf.Ide.DEmi)
	}
	doc.TotalValue = t(inf.Total.ICMSTot.VNF)
	doc.AccessKey = strings.ReplaceAll(t(inf.ID), "NFe", "")

	d := inf.Dest
	doc.Recipient = Recipient{
		Document:          t(d.CNPJ),
		Name:              t(d.XNome),
		TradeName:         t(d.XFant),
		Street:            t(d.EnderDest.XLgr),
		Number:            t(d.EnderDest.Nro),
		District:          t(d.EnderDest.XBairro),
		StateRegistration: t(d.IE),
		City:              t(d.EnderDest.XMun),
		State:             t(d.EnderDest.UF),
		ZipCode:           t(d.EnderDest.CEP),
		Complement:        t(d.EnderDest.XCpl),
		Country:           t(d.EnderDest.XPais),
		IBGECode:          t(d.EnderDest.CMun),
		Phone:             t(d.Fone),
		Email:             t(d.Email),
	}
	if doc.Recipient.Document == "" {
		doc.Recipient.Document = t(d.CPF)
	}

	doc.Items = make([]Item, 0, len(inf.Det))
	for _, det := range inf.Det {
		p := det.Prod
		item := Item{
			Code:       t(p.CProd),
			Name:       t(p.XProd),
			NCM:        t(p.NCM),
			CFOP:       t(p.CFOP),
			Unit:       t(p.UCom),
			Quantity:   t(p.QCom),
			UnitValue:  t(p.VUnCom),
			TotalValue: t(p.VProd),
			CSTICMS:    defaultCSTICMS,
		}
		if item.Unit == "" {
			item.Unit = defaultUnit
		}
		for _, g := range det.Imposto.ICMS.Groups {
			cst := t(g.CST)
			if cst == "" {
				cst = t(g.CSOSN)
			}
			if cst != "" {
				item.CSTICMS = cst
				break
			}
		}
		doc.Items = append(doc.Items, item)
	}
}

// charsetReader decodes the legacy encodings some issuers still declare.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported XML encoding %q", label)
}
