package shared

// Core platform permissions.
const (
	PermUserRead    = "USER_READ"
	PermUserCreate  = "USER_CREATE"
	PermUserUpdate  = "USER_UPDATE"
	PermUserDisable = "USER_DISABLE"

	PermRoleRead   = "ROLE_READ"
	PermRoleUpdate = "ROLE_UPDATE"

	PermAuditRead = "AUDIT_READ"
	PermJobRead   = "JOB_READ"
)

// Warehouse permissions checked by the CRUD collaborators.
const (
	PermFacilityRead   = "FACILITY_READ"
	PermFacilityCreate = "FACILITY_CREATE"
	PermFacilityUpdate = "FACILITY_UPDATE"

	PermZoneRead   = "ZONE_READ"
	PermZoneCreate = "ZONE_CREATE"
	PermZoneUpdate = "ZONE_UPDATE"

	PermSectionRead   = "SECTION_READ"
	PermSectionCreate = "SECTION_CREATE"
	PermSectionUpdate = "SECTION_UPDATE"

	PermLocationRead   = "LOCATION_READ"
	PermLocationCreate = "LOCATION_CREATE"
	PermLocationUpdate = "LOCATION_UPDATE"

	PermItemGroupRead   = "ITEMGROUP_READ"
	PermItemGroupCreate = "ITEMGROUP_CREATE"
	PermItemGroupUpdate = "ITEMGROUP_UPDATE"

	PermItemRead   = "ITEM_READ"
	PermItemCreate = "ITEM_CREATE"
	PermItemUpdate = "ITEM_UPDATE"
	PermItemDelete = "ITEM_DELETE"

	PermPlateRead   = "PLATE_READ"
	PermPlateCreate = "PLATE_CREATE"
	PermPlateUpdate = "PLATE_UPDATE"

	PermInventoryMove = "INVENTORY_MOVE"
	PermOrderCreate   = "ORDER_CREATE"
)

// PermissionDescriptions is the seeded permission catalogue.
func PermissionDescriptions() map[string]string {
	return map[string]string{
		PermUserRead:        "View users",
		PermUserCreate:      "Create users",
		PermUserUpdate:      "Edit users and reset passwords",
		PermUserDisable:     "Disable users",
		PermRoleRead:        "View roles and permissions",
		PermRoleUpdate:      "Change role permissions",
		PermAuditRead:       "View the audit log",
		PermJobRead:         "View background job health",
		PermFacilityRead:    "View facilities",
		PermFacilityCreate:  "Create facilities",
		PermFacilityUpdate:  "Edit facilities",
		PermZoneRead:        "View zones",
		PermZoneCreate:      "Create zones",
		PermZoneUpdate:      "Edit zones",
		PermSectionRead:     "View sections",
		PermSectionCreate:   "Create sections",
		PermSectionUpdate:   "Edit sections",
		PermLocationRead:    "View locations and location types",
		PermLocationCreate:  "Create locations and location types",
		PermLocationUpdate:  "Edit locations and location types",
		PermItemGroupRead:   "View item groups",
		PermItemGroupCreate: "Create item groups",
		PermItemGroupUpdate: "Edit item groups",
		PermItemRead:        "View items",
		PermItemCreate:      "Create items",
		PermItemUpdate:      "Edit items",
		PermItemDelete:      "Delete items",
		PermPlateRead:       "View license plates",
		PermPlateCreate:     "Receive license plates",
		PermPlateUpdate:     "Edit license plates",
		PermInventoryMove:   "Move inventory between locations",
		PermOrderCreate:     "Create orders",
	}
}
