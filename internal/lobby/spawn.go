package lobby

import (
	"math"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
)

// buildSpawns distribui os participantes pelo perímetro da arena, replicando
// a lógica de spawn do torneio single-player: pontos espaçados nas quatro
// bordas com margem, embaralhados pelo seed da partida.
func buildSpawns(seed string, mapW, mapH float64, count int) []message.Spawn {
	if count <= 0 {
		return nil
	}
	const margin = 96.0
	minX, minY := margin, margin
	maxX := math.Max(margin+16, mapW-margin)
	maxY := math.Max(margin+16, mapH-margin)

	type edge struct{ x1, y1, x2, y2 float64 }
	edges := []edge{
		{minX, minY, maxX, minY}, // topo
		{maxX, minY, maxX, maxY}, // direita
		{maxX, maxY, minX, maxY}, // baixo
		{minX, maxY, minX, minY}, // esquerda
	}

	perEdge := [4]int{count / 4, count / 4, count / 4, count / 4}
	for i := 0; i < count%4; i++ {
		perEdge[i]++
	}

	var pts []message.Spawn
	for idx, e := range edges {
		slots := perEdge[idx]
		for s := 0; s < slots; s++ {
			t := (float64(s) + 0.5) / float64(slots)
			pts = append(pts, message.Spawn{
				X: math.Round(e.x1 + (e.x2-e.x1)*t),
				Y: math.Round(e.y1 + (e.y2-e.y1)*t),
			})
		}
	}

	rng := minigame.NewRand(minigame.SeedFrom("spawns", seed))
	rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })

	// Com mais participantes do que pontos (não deveria acontecer com a
	// margem padrão), reutiliza posições em vez de falhar.
	for len(pts) < count {
		pts = append(pts, pts[len(pts)%4])
	}
	return pts[:count]
}
