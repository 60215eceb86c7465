package lobby

// TriggerFunc é o predicado de gatilho de duelo, avaliado pelo servidor a
// cada tick com autoridade final. O cliente pode propor duelos para ganhar
// responsividade, mas só o que este predicado (ou um desafio aceito) decide
// vira duelo de verdade.
type TriggerFunc func(m *MatchState) (a, b string, ok bool)

// ProximityTrigger devolve o gatilho padrão: o par elegível mais próximo
// dentro do raio, preferindo pares com pelo menos um humano. A varredura
// segue a ordem de entrada dos participantes, então o desempate entre
// distâncias iguais é determinístico.
func ProximityTrigger(radius float64) TriggerFunc {
	r2 := radius * radius
	return func(m *MatchState) (string, string, bool) {
		eligible := m.eligibleDuelists()
		if len(eligible) < 2 {
			return "", "", false
		}
		var bestA, bestB string
		bestD2 := r2
		bestHuman := false
		found := false
		for i := 0; i < len(eligible); i++ {
			for j := i + 1; j < len(eligible); j++ {
				a, b := eligible[i], eligible[j]
				pa, pb := m.actors[a], m.actors[b]
				dx := pa.x - pb.x
				dy := pa.y - pb.y
				d2 := dx*dx + dy*dy
				if d2 > r2 {
					continue
				}
				hasHuman := !pa.npc || !pb.npc
				switch {
				case hasHuman && !bestHuman:
					bestA, bestB, bestD2, bestHuman, found = a, b, d2, true, true
				case hasHuman == bestHuman && d2 < bestD2:
					bestA, bestB, bestD2, found = a, b, d2, true
				}
			}
		}
		return bestA, bestB, found
	}
}
