package models

// Client is an invoice counterpart (destinatario), keyed by CPF/CNPJ.
type Client struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	Document          string  `gorm:"column:documento;size:32;not null;uniqueIndex" json:"documento"`
	Name              string  `gorm:"column:nome;type:text;not null" json:"nome"`
	TradeName         *string `gorm:"column:nome_fantasia;type:text" json:"nomeFantasia,omitempty"`
	Street            *string `gorm:"column:logradouro;type:text" json:"logradouro,omitempty"`
	Number            *string `gorm:"column:numero;size:32" json:"numero,omitempty"`
	District          *string `gorm:"column:bairro;type:text" json:"bairro,omitempty"`
	StateRegistration *string `gorm:"column:inscricao_estadual;size:32" json:"inscricaoEstadual,omitempty"`
	City              *string `gorm:"column:cidade;type:text" json:"cidade,omitempty"`
	State             *string `gorm:"column:uf;size:8" json:"uf,omitempty"`
	ZipCode           *string `gorm:"column:cep;size:16" json:"cep,omitempty"`
	Complement        *string `gorm:"column:endereco_complemento;type:text" json:"enderecoComplemento,omitempty"`
	Country           *string `gorm:"column:endereco_pais;type:text" json:"enderecoPais,omitempty"`
	IBGECode          *string `gorm:"column:ibge_id;size:16" json:"ibgeId,omitempty"`
	Phone             *string `gorm:"column:telefone;size:32" json:"telefone,omitempty"`
	Email             *string `gorm:"column:email;size:128" json:"email,omitempty"`
}

func (Client) TableName() string { return "clients" }

// StoreID is the alias namespace used for products bought by this client.
func (c Client) StoreID() string {
	if c.Document != "" {
		return c.Document
	}
	return "cliente_" + uitoa(c.ID)
}
