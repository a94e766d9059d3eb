package mailer

import (
	"fmt"
	"time"
)

const brand = "ProvaLab"

func greeting(name string) string {
	if name == "" {
		return "Ola!"
	}
	return fmt.Sprintf("Ola, %s!", name)
}

func minutes(d time.Duration) int {
	m := int(d / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// VerificationEmail carries both the 6-digit code and the magic link for the
// same challenge.
func VerificationEmail(to, name, code, magicLink string, ttl time.Duration) Message {
	body := fmt.Sprintf("%s\n\n"+
		"Clique no link abaixo para confirmar seu acesso ao %s:\n\n"+
		"%s\n\n"+
		"Ou digite este codigo na tela de verificacao:\n\n"+
		"%s\n\n"+
		"O codigo e o link expiram em %d minutos.\n"+
		"Se voce nao pediu este acesso, ignore este email.",
		greeting(name), brand, magicLink, code, minutes(ttl))

	return Message{
		To:      to,
		Subject: "Confirme seu email - " + brand,
		Body:    body,
	}
}

func PasswordResetEmail(to, name, resetLink string, ttl time.Duration) Message {
	body := fmt.Sprintf("%s\n\n"+
		"Recebemos um pedido para redefinir a senha da sua conta %s.\n"+
		"Use o link abaixo para escolher uma nova senha:\n\n"+
		"%s\n\n"+
		"O link expira em %d minutos e so pode ser usado uma vez.\n"+
		"Se voce nao fez este pedido, ignore este email.",
		greeting(name), brand, resetLink, minutes(ttl))

	return Message{
		To:      to,
		Subject: "Redefinicao de senha - " + brand,
		Body:    body,
	}
}
