package das

import "strings"

// sampleDAS is the text of a one page DAS as pdftext extracts it.
const sampleDAS = `Documento de Arrecadação do Simples Nacional
CNPJ: 12.345.678/0001-99
Nome empresarial: Padaria Pão Quente Ltda
Período de Apuração: 01/01/2024 a 31/01/2024
Regime de Apuração: Competência
Receita Bruta do PA (RPA): R$ 10.000,00
RBT12: R$ 120.000,00
IRPJ CSLL COFINS PIS/Pasep INSS/CPP ICMS IPI ISS Total
40,00 30,00 120,00 25,00 400,00 335,00 0,00 50,00 1.000,00
Atividades
Revenda de mercadorias 60,00% 6.000,00 600,00
Prestação de serviços 40,00% 4.000,00 400,00
Página 1 de 1`

// withTotal returns sampleDAS with the declared total replaced.
func withTotal(total string) string {
	return strings.Replace(sampleDAS, "50,00 1.000,00", "50,00 "+total, 1)
}

// withoutTotal drops the Total column and its value.
func withoutTotal() string {
	s := strings.Replace(sampleDAS, " ISS Total", " ISS", 1)
	return strings.Replace(s, "50,00 1.000,00", "50,00", 1)
}
