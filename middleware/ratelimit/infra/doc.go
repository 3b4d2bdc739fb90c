// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Store: estado por chave, particionado em token buckets e janelas fixas,
//     com limpeza periódica
//   - TokenBucket: refill contínuo usando golang.org/x/time/rate
//   - FixedWindow: contador por janela discreta com expiração lazy
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
package infra
