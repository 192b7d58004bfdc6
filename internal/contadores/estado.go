package contadores

// EstadoEquipo is the condition the technician reports with a reading.
type EstadoEquipo string

const (
	EstadoOperativo       EstadoEquipo = "operativo"
	EstadoConFallas       EstadoEquipo = "con_fallas"
	EstadoFueraDeServicio EstadoEquipo = "fuera_de_servicio"
)

// Valido reports whether e is one of the known states.
func (e EstadoEquipo) Valido() bool {
	switch e {
	case EstadoOperativo, EstadoConFallas, EstadoFueraDeServicio:
		return true
	}
	return false
}

// RequiereMantenimiento reports whether a reading in state e should put the
// equipment into maintenance.
func (e EstadoEquipo) RequiereMantenimiento() bool {
	return e == EstadoConFallas || e == EstadoFueraDeServicio
}
