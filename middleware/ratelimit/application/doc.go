// Package application contém os casos de uso (regras de aplicação) do controle
// de admissão.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, req) normaliza a regra, compõe a chave, chama o
// limiter da estratégia e retorna uma Decision.
package application
