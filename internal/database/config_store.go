package database

// GetConfig reads a runtime config value set through the admin API.
func GetConfig(key string) (string, bool) {
	var entry ConfigEntry
	if err := DB.Where("key = ?", key).First(&entry).Error; err != nil {
		return "", false
	}
	return entry.Value, true
}

// SetConfig upserts a runtime config value.
func SetConfig(key, value string) error {
	var existing ConfigEntry
	if err := DB.Where("key = ?", key).First(&existing).Error; err == nil {
		return DB.Model(&existing).Update("value", value).Error
	}
	return DB.Create(&ConfigEntry{Key: key, Value: value}).Error
}
