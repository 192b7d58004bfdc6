package rbac

// DefinicionPermiso is a compiled-in catalog entry.
type DefinicionPermiso struct {
	Nombre      string
	Descripcion string
	Categoria   string
	Roles       []Rol
}

var (
	soloSuper   = []Rol{RolSuperAdmin}
	admins      = []Rol{RolSuperAdmin, RolAdmin}
	todos       = []Rol{RolSuperAdmin, RolAdmin, RolTecnico}
	soloTecnico = []Rol{RolTecnico}
)

var catalogo = []DefinicionPermiso{
	{"admin_todo", "Acceso total al sistema (superusuario)", "sistema", soloSuper},
	{"configurar_sistema", "Configuración general del sistema", "sistema", admins},
	{"ver_logs", "Ver registros del sistema", "sistema", admins},

	{"gestionar_backups", "Realizar y restaurar copias de seguridad", "administracion", admins},
	{"gestionar_parametros", "Gestionar parámetros del sistema", "administracion", admins},

	{"gestionar_usuarios", "Crear, editar y desactivar usuarios", "usuarios", admins},
	{"ver_usuarios", "Ver lista de usuarios", "usuarios", admins},
	{"asignar_roles", "Asignar roles a usuarios", "usuarios", admins},
	{"gestionar_permisos", "Asignar permisos a roles y usuarios", "usuarios", soloSuper},

	{"gestionar_clientes", "Crear, editar y desactivar clientes", "clientes", admins},
	{"ver_clientes", "Ver lista de clientes", "clientes", todos},
	{"exportar_clientes", "Exportar datos de clientes", "clientes", admins},

	{"gestionar_equipos", "Gestionar todos los equipos", "equipos", admins},
	{"ver_equipos", "Ver lista de equipos", "equipos", todos},
	{"ver_equipos_asignados", "Ver solo equipos asignados", "equipos", soloTecnico},
	{"registrar_mantenimiento", "Registrar mantenimiento de equipos", "equipos", todos},

	{"gestionar_conteos", "Gestionar todos los conteos de impresiones", "conteos", admins},
	{"ver_conteos", "Ver todos los conteos de impresiones", "conteos", admins},
	{"ver_conteos_propios", "Ver solo conteos propios", "conteos", soloTecnico},
	{"crear_conteos", "Registrar nuevos conteos de impresiones", "conteos", []Rol{RolAdmin, RolTecnico}},
	{"editar_conteos", "Editar cualquier conteo de impresiones", "conteos", admins},
	{"editar_conteos_propios", "Editar solo conteos propios", "conteos", soloTecnico},
	{"eliminar_conteos", "Eliminar conteos de impresiones", "conteos", soloSuper},
	{"exportar_conteos", "Exportar datos de conteos", "conteos", admins},

	{"gestionar_visitas", "Gestionar todas las visitas técnicas", "visitas", admins},
	{"ver_visitas", "Ver todas las visitas técnicas", "visitas", admins},
	{"crear_visitas", "Programar nuevas visitas técnicas", "visitas", admins},
	{"registrar_visitas", "Registrar informes de visitas realizadas", "visitas", todos},
	{"eliminar_visitas", "Cancelar visitas técnicas", "visitas", admins},

	{"ver_reportes", "Acceder a los reportes del sistema", "reportes", admins},
	{"generar_reportes", "Generar reportes personalizados", "reportes", admins},
	{"exportar_datos", "Exportar datos a diferentes formatos", "reportes", admins},
}

// Catalogo returns a copy of the compiled-in permission catalog.
func Catalogo() []DefinicionPermiso {
	out := make([]DefinicionPermiso, len(catalogo))
	copy(out, catalogo)
	return out
}

// EnCatalogo reports whether nombre is a compiled-in permission.
func EnCatalogo(nombre string) bool {
	for _, p := range catalogo {
		if p.Nombre == nombre {
			return true
		}
	}
	return false
}
