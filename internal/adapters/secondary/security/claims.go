package security

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// Deux decoders derrière le même port : UnverifiedDecoder fait l'extraction
// structurelle des claims (ce que fait le client mobile), VerifyingDecoder
// établit la confiance en vérifiant la signature RS256 contre la clé
// publique de l'émetteur. En prod on veut le second : sans signature, un
// payload forgé avec un exp futur passerait.

// UnverifiedDecoder découpe le token (3 segments), décode le payload en
// base64 URL-safe, et en extrait sub + exp. Aucune vérification de signature.
type UnverifiedDecoder struct {
	parser *jwt.Parser
}

func NewUnverifiedDecoder() *UnverifiedDecoder {
	// WithPaddingAllowed : certains émetteurs paddent le base64 avec '='.
	return &UnverifiedDecoder{parser: jwt.NewParser(jwt.WithPaddingAllowed())}
}

func (d *UnverifiedDecoder) DecodeClaims(token string) (*domain.SessionClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("claims decode: %w", err)
	}
	return fromMapClaims(claims)
}

// VerifyingDecoder vérifie la signature avant de livrer les claims.
// Modélisé sur le provider JWT de l'identity-service.
type VerifyingDecoder struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewVerifyingDecoder charge la clé publique RSA depuis une chaîne PEM.
func NewVerifyingDecoder(publicKeyPEM []byte) (*VerifyingDecoder, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &VerifyingDecoder{
		publicKey: pubKey,
		// La comparaison d'expiration appartient au SessionValidator, pas au
		// parseur : on désactive sa validation de claims.
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}, nil
}

func (d *VerifyingDecoder) DecodeClaims(token string) (*domain.SessionClaims, error) {
	parsed, err := d.parser.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Sécurité critique : refuser tout autre algo que RSA.
		// Empêche les attaques "alg: none" ou HS256 avec la clé publique.
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return d.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token verify: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return fromMapClaims(claims)
}

// fromMapClaims traduit les claims brutes vers le domaine.
// exp absent ou non numérique est une erreur : sans expiration, pas de session.
func fromMapClaims(claims jwt.MapClaims) (*domain.SessionClaims, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("claims: exp: %w", err)
	}
	if exp == nil {
		return nil, errors.New("claims: missing exp")
	}

	out := &domain.SessionClaims{ExpiresAt: exp.Time}

	// L'identité vit dans "sub" ; les anciens tokens la mettaient dans "email".
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		out.Subject = sub
	} else if email, ok := claims["email"].(string); ok {
		out.Subject = email
	}

	return out, nil
}
