package topics

const (
	// Barramento de eventos (todas as fontes publicam aqui; cada handler é um consumer group)
	Bus = "sportsbook.bus"

	// Liquidação: uma task por aposta travada
	SettlementTasks    = "sportsbook.settlement.tasks"
	SettlementTasksDLQ = "sportsbook.settlement.tasks.dlq"
)
