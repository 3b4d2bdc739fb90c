// Package ratelimit fornece o controle de admissão HTTP (net/http) dos endpoints
// de escrita do fórum: criação de comentários, votos e pedidos de reset de senha.
//
// Visão geral (camadas):
//
//   - domain: regras, chaves compostas, decisões (sem dependência de net/http)
//   - application: normalização das opções e decisão allow/deny (fail-closed)
//   - infra: Store do processo, token bucket, janela fixa, estatísticas
//   - ratelimit (este pacote): resolução de identidade + tradução da decisão
//     para headers/status + middleware por rota
//
// Fluxo por requisição:
//
//  1. Resolve a identidade (usuário autenticado, X-Forwarded-For, RemoteAddr)
//  2. Compõe a chave regra|identidade|recurso
//  3. Chama a camada application para obter a decisão
//  4. Sempre escreve X-RateLimit-Limit / -Remaining / -Reset
//  5. Se negado, responde 429 com Retry-After e corpo JSON; senão segue
//
// O estado é de um único processo: várias réplicas com Stores próprios não
// somam um limite global.
package ratelimit
